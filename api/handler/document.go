package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/pdf-rag/api/middleware"
	"github.com/fyerfyer/pdf-rag/api/model"
	"github.com/fyerfyer/pdf-rag/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 管理输入目录中的文档
// 上传的文档在下一次入库时才会被处理
type DocumentHandler struct {
	fileStorage storage.Storage     // 文件存储服务
	extensions  map[string]struct{} // 允许上传的扩展名
	logger      *logrus.Logger      // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(fileStorage storage.Storage, extensions []string, logger *logrus.Logger) *DocumentHandler {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &DocumentHandler{
		fileStorage: fileStorage,
		extensions:  exts,
		logger:      logger,
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", err.Error()))
		return
	}

	name := req.Path
	if name == "" {
		name = req.File.Filename
	}
	if _, ok := h.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
		middleware.HandleError(c, middleware.NewValidationError("unsupported file type", filepath.Ext(name)))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer file.Close()

	info, err := h.fileStorage.Save(file, name)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"file_id":               info.ID,
		"size":                  info.Size,
		middleware.FieldTraceID: middleware.GetTraceID(c),
	}).Info("File uploaded successfully")

	c.JSON(http.StatusOK, model.NewSuccessResponse(toDocumentInfo(info)))
}

// ListDocuments 列出输入目录中的文档
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	files, err := h.fileStorage.List()
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	docs := make([]model.DocumentInfo, 0, len(files))
	for _, f := range files {
		if _, ok := h.extensions[strings.ToLower(filepath.Ext(f.ID))]; ok {
			docs = append(docs, toDocumentInfo(f))
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     len(docs),
		Documents: docs,
	}))
}

func toDocumentInfo(f storage.FileInfo) model.DocumentInfo {
	return model.DocumentInfo{
		ID:       f.ID,
		Name:     f.Name,
		Size:     f.Size,
		MimeType: f.MimeType,
	}
}
