package model

import (
	"mime/multipart"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// QARequest 问答请求
type QARequest struct {
	Question string `json:"question" binding:"required,notblank,max=4096"` // 问题内容
	Expected string `json:"expected" binding:"omitempty,max=4096"`         // 可选的期望回答，提供时同时返回评估结果
}

// IngestRequest 入库请求
type IngestRequest struct {
	Reset bool `json:"reset"` // 入库前是否清空向量库
}

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`          // 文件对象
	Path string                `form:"path" binding:"omitempty,max=512"` // 可选的保存路径，默认使用文件名
}

var registerOnce sync.Once

// RegisterValidators 向gin的校验器注册自定义规则
// 需要在绑定任何带有 notblank 规则的请求之前调用
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("notblank", validators.NotBlank)
		}
	})
}
