package llm

import (
	"context"
	"fmt"
	"strings"
)

// DefaultRAGTemplate 默认RAG提示词模板
// 包含变量：
// {{.Context}} - 检索的上下文
// {{.Question}} - 用户问题
const DefaultRAGTemplate = `
Answer the question based only on the following context:

{{.Context}}

---

Answer the question based on the above context: {{.Question}}
`

// DefaultEvalTemplate 回答评估提示词模板
// 包含变量：
// {{.Expected}} - 期望回答
// {{.Actual}} - 实际回答
const DefaultEvalTemplate = `
Expected Response: {{.Expected}}
Actual Response: {{.Actual}}
(Answer in true or false )does the actual response match the expected response?`

// ContextSeparator 拼接多个上下文分块时使用的分隔符
const ContextSeparator = "\n\n---\n\n"

// RAGConfig 检索增强生成配置
type RAGConfig struct {
	Template     string // 问答提示词模板
	EvalTemplate string // 评估提示词模板
}

// DefaultRAGConfig 默认RAG配置
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Template:     DefaultRAGTemplate,
		EvalTemplate: DefaultEvalTemplate,
	}
}

// RAGOption RAG配置选项函数类型
type RAGOption func(*RAGConfig)

// WithTemplate 设置问答提示词模板
func WithTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = template
	}
}

// WithEvalTemplate 设置评估提示词模板
func WithEvalTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.EvalTemplate = template
	}
}

// RAGService 检索增强生成服务
// 只负责填充模板和调用模型，不做重试和超时控制
type RAGService struct {
	client Client
	config RAGConfig
}

// NewRAG 创建新的检索增强生成服务
func NewRAG(client Client, opts ...RAGOption) *RAGService {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &RAGService{
		client: client,
		config: *cfg,
	}
}

// Answer 根据上下文和问题生成回答
func (r *RAGService) Answer(ctx context.Context, question string, contexts []string) (*RAGResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	prompt := BuildPrompt(r.config.Template, question, contexts)

	resp, err := r.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	return &RAGResponse{
		Answer: resp.Text,
		Prompt: prompt,
	}, nil
}

// Evaluate 让模型判断实际回答是否与期望回答一致
// 判定结果去除首尾空白并转小写后为 true 或 yes 时视为通过
func (r *RAGService) Evaluate(ctx context.Context, expected, actual string) (*Evaluation, error) {
	prompt := r.config.EvalTemplate
	prompt = strings.ReplaceAll(prompt, "{{.Expected}}", expected)
	prompt = strings.ReplaceAll(prompt, "{{.Actual}}", actual)

	resp, err := r.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate response: %w", err)
	}

	verdict := strings.ToLower(strings.TrimSpace(resp.Text))
	return &Evaluation{
		Passed:  verdict == "true" || verdict == "yes",
		Verdict: verdict,
		Prompt:  prompt,
	}, nil
}

// BuildPrompt 用问题和上下文填充模板
func BuildPrompt(template, question string, contexts []string) string {
	prompt := strings.ReplaceAll(template, "{{.Context}}", strings.Join(contexts, ContextSeparator))
	return strings.ReplaceAll(prompt, "{{.Question}}", question)
}
