package api

import (
	"net/http"

	"github.com/fyerfyer/pdf-rag/api/handler"
	"github.com/fyerfyer/pdf-rag/api/middleware"
	"github.com/fyerfyer/pdf-rag/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	QA       *handler.QAHandler
	Ingest   *handler.IngestHandler
	Document *handler.DocumentHandler
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(logger *logrus.Logger, h Handlers) *gin.Engine {
	model.RegisterValidators()

	router := gin.New()
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.RequestBodyLog(logger))

	api := router.Group("/api")
	{
		// 健康检查 - GET /api/health
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// 问答 - POST /api/qa
		api.POST("/qa", h.QA.AnswerQuestion)

		// 入库 - POST /api/ingest
		api.POST("/ingest", h.Ingest.Ingest)

		// 分块数量 - GET /api/chunks/count
		api.GET("/chunks/count", h.Ingest.Count)

		// 输入文档
		if h.Document != nil {
			api.GET("/documents", h.Document.ListDocuments)
			api.POST("/documents", h.Document.UploadDocument)
		}
	}

	return router
}
