package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient 基于OpenAI兼容接口的对话补全客户端
// 同时用于OpenAI、Ollama以及DashScope兼容模式
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient 创建OpenAI客户端，必须提供API密钥
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(
		WithBaseURL("https://api.openai.com/v1"),
		WithModel(openai.GPT4oMini),
	)
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, "OpenAI API key is required")
	}
	return newOpenAICompatible(*cfg), nil
}

// NewOllamaClient 创建Ollama客户端，不需要API密钥
func NewOllamaClient(opts ...Option) (Client, error) {
	return newOpenAICompatible(*NewConfig(opts...)), nil
}

func newOpenAICompatible(cfg Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

// Generate 将提示词作为单条用户消息发送
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, options...)
}

// Chat 进行多轮对话
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...GenerateOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "messages cannot be empty")
	}

	opts := GenerateOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}

	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, NewLLMError(ErrCodeContentFilter, ErrMsgContentFilter)
	}

	return &Response{
		Text:         choice.Message.Content,
		TokenCount:   resp.Usage.TotalTokens,
		ModelName:    resp.Model,
		FinishReason: string(choice.FinishReason),
		FinishTime:   time.Now(),
	}, nil
}

// classifyError 将go-openai返回的错误映射为LLMError
func classifyError(err error) LLMError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewLLMError(ErrCodeTimeout, ErrMsgTimeout)
	}

	status := 0
	message := err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if apiErr.Message != "" {
			message = apiErr.Message
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return NewLLMError(ErrCodeNetworkError, message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewLLMError(ErrCodeInvalidAPIKey, message)
	case status == http.StatusTooManyRequests:
		return NewLLMError(ErrCodeRateLimited, message)
	case status >= 500:
		return NewLLMError(ErrCodeServerError, message)
	case strings.Contains(strings.ToLower(message), "context length"):
		return NewLLMError(ErrCodeContextTooLong, message)
	default:
		return NewLLMError(ErrCodeInvalidRequest, message)
	}
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
	RegisterClient("ollama", NewOllamaClient)
}
