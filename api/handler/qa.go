package handler

import (
	"context"
	"net/http"

	"github.com/fyerfyer/pdf-rag/api/middleware"
	"github.com/fyerfyer/pdf-rag/api/model"
	"github.com/fyerfyer/pdf-rag/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Answerer 问答能力
type Answerer interface {
	Answer(ctx context.Context, question string) (*services.Answer, error)
	Evaluate(ctx context.Context, question, expected string) (*services.Evaluation, error)
}

// QAHandler 处理问答相关的API请求
type QAHandler struct {
	qa     Answerer       // 问答服务
	logger *logrus.Logger // 日志记录器
}

// NewQAHandler 创建新的问答处理器
func NewQAHandler(qa Answerer, logger *logrus.Logger) *QAHandler {
	return &QAHandler{
		qa:     qa,
		logger: logger,
	}
}

// AnswerQuestion 处理问答请求，请求中带有expected时同时评估回答
// POST /api/qa
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", err.Error()))
		return
	}

	ctx := c.Request.Context()
	h.logger.WithFields(logrus.Fields{
		"question":              req.Question,
		middleware.FieldTraceID: middleware.GetTraceID(c),
	}).Info("Answering question")

	var resp model.QAResponse
	if req.Expected != "" {
		eval, err := h.qa.Evaluate(ctx, req.Question, req.Expected)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		resp = toQAResponse(eval.Answer)
		resp.Evaluation = &model.EvaluationInfo{
			Expected: eval.Expected,
			Passed:   eval.Passed,
			Verdict:  eval.Verdict,
		}
	} else {
		answer, err := h.qa.Answer(ctx, req.Question)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		resp = toQAResponse(answer)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

func toQAResponse(answer *services.Answer) model.QAResponse {
	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	return model.QAResponse{
		Question: answer.Question,
		Answer:   answer.Text,
		Sources:  sources,
		Cached:   answer.Cached,
	}
}
