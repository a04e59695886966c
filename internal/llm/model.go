package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`    // 角色
	Content string      `json:"content"` // 内容
}

// Response 统一的响应结构
type Response struct {
	Text         string    // 生成的文本
	TokenCount   int       // 使用的token数
	ModelName    string    // 使用的模型名称
	FinishReason string    // 结束原因
	FinishTime   time.Time // 完成时间
}

// RAGResponse RAG响应结构
type RAGResponse struct {
	Answer string // 回答内容
	Prompt string // 实际发送给模型的提示词
}

// Evaluation 回答评估结果
type Evaluation struct {
	Passed  bool   // 实际回答是否与期望一致
	Verdict string // 模型给出的原始判定，已去除首尾空白并转为小写
	Prompt  string // 评估提示词
}
