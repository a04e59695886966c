package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/pdf-rag/api/model"
	"github.com/fyerfyer/pdf-rag/internal/embedding"
	"github.com/fyerfyer/pdf-rag/internal/llm"
	"github.com/fyerfyer/pdf-rag/internal/services"
	"github.com/fyerfyer/pdf-rag/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeNotFound    = "NOT_FOUND_ERROR"   // 资源不存在错误
	ErrorTypeUpstream    = "UPSTREAM_ERROR"    // 模型服务错误
	ErrorTypeUnavailable = "UNAVAILABLE_ERROR" // 向量库不可用
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewUpstreamError 创建模型服务错误
func NewUpstreamError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadGateway,
	}
}

// NewUnavailableError 创建服务不可用错误
func NewUnavailableError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusServiceUnavailable,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// classify 将服务层错误转换为AppError
func classify(err error) AppError {
	var appErr AppError
	var appErrPtr *AppError
	var llmErr llm.LLMError
	var embedErr embedding.EmbeddingError

	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &appErrPtr):
		return *appErrPtr
	case errors.Is(err, services.ErrEmptyQuestion):
		return NewValidationError(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError(err.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		return NewUnavailableError("vector store unavailable", err.Error())
	case errors.As(err, &llmErr):
		return NewUpstreamError("language model request failed", llmErr.Message)
	case errors.As(err, &embedErr):
		return NewUpstreamError("embedding request failed", embedErr.Message)
	default:
		return NewInternalError("Internal server error", err.Error())
	}
}

// ErrorHandler 统一错误处理中间件
// 恢复panic，并把处理器通过 c.Error 记录的最后一个错误写成JSON响应
func ErrorHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithFields(logrus.Fields{
					FieldError:   rec,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: GetTraceID(c),
				}).Error("Panic recovered in API request")

				resp := model.NewErrorResponse(http.StatusInternalServerError, "An unexpected error occurred")
				resp.TraceID = GetTraceID(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := classify(c.Errors.Last().Err)
		entry := logger.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: GetTraceID(c),
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Code >= http.StatusInternalServerError {
			entry.WithField(FieldError, appErr.Details).Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		message := appErr.Message
		// 只在调试模式下返回内部错误详情
		if appErr.Details != "" && (appErr.Code < http.StatusInternalServerError || gin.Mode() == gin.DebugMode) {
			message = appErr.Message + ": " + appErr.Details
		}

		resp := model.NewErrorResponse(appErr.Code, message)
		resp.TraceID = GetTraceID(c)
		c.AbortWithStatusJSON(appErr.Code, resp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
