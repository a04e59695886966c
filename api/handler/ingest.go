package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fyerfyer/pdf-rag/api/middleware"
	"github.com/fyerfyer/pdf-rag/api/model"
	"github.com/fyerfyer/pdf-rag/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Ingester 入库能力
type Ingester interface {
	Run(ctx context.Context) (services.IngestResult, error)
	Reset() error
	Count() (int, error)
}

// IngestHandler 处理入库相关的API请求
type IngestHandler struct {
	ingest Ingester
	logger *logrus.Logger
}

// NewIngestHandler 创建入库处理器
func NewIngestHandler(ingest Ingester, logger *logrus.Logger) *IngestHandler {
	return &IngestHandler{
		ingest: ingest,
		logger: logger,
	}
}

// Ingest 执行一次增量入库，reset为true时先清空向量库
// POST /api/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	// 请求体可以为空
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", err.Error()))
		return
	}

	if req.Reset {
		h.logger.WithField(middleware.FieldTraceID, middleware.GetTraceID(c)).Info("Clearing database")
		if err := h.ingest.Reset(); err != nil {
			middleware.HandleError(c, err)
			return
		}
	}

	result, err := h.ingest.Run(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.IngestResponse{
		Reset:     req.Reset,
		Documents: result.Documents,
		Chunks:    result.Chunks,
		Existing:  result.Existing,
		Added:     result.Added,
		Skipped:   result.Skipped,
	}))
}

// Count 返回向量库中的分块数量
// GET /api/chunks/count
func (h *IngestHandler) Count(c *gin.Context) {
	count, err := h.ingest.Count()
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.CountResponse{Count: count}))
}
