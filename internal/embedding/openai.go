package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient 基于OpenAI兼容接口的嵌入客户端
// 同时用于OpenAI、Ollama以及DashScope兼容模式
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient 创建OpenAI嵌入客户端，必须提供API密钥
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(
		WithBaseURL("https://api.openai.com/v1"),
		WithModel(string(openai.SmallEmbedding3)),
	)
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, "OpenAI API key is required")
	}
	return newOpenAICompatible(*cfg), nil
}

// NewOllamaClient 创建Ollama嵌入客户端，不需要API密钥
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

// Embed 对单个文本生成嵌入向量
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := c.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 对多个文本生成嵌入向量，输入中不允许出现空文本
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.config.BatchSize > 0 && len(texts) > c.config.BatchSize {
		return nil, ErrBatchTooLarge
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	return c.request(ctx, texts)
}

// request 发送嵌入请求，限流时按指数退避重试
func (c *OpenAIClient) request(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.Model),
	}

	var (
		resp openai.EmbeddingResponse
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = c.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}

		classified := classifyError(err)
		if classified.Code != ErrCodeRateLimited || attempt >= c.config.MaxRetries {
			return nil, fmt.Errorf("%w: %v", classified, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<attempt) * time.Second):
		}
	}

	if len(resp.Data) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, NewEmbeddingError(ErrCodeServerError,
				fmt.Sprintf("embedding index %d out of range", item.Index))
		}
		if c.config.Dimensions > 0 && len(item.Embedding) != c.config.Dimensions {
			return nil, NewEmbeddingError(ErrCodeDimensionMismatch,
				fmt.Sprintf("model %s returned %d dimensions, expected %d",
					c.config.Model, len(item.Embedding), c.config.Dimensions))
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// classifyError 将go-openai返回的错误映射为EmbeddingError
func classifyError(err error) EmbeddingError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return NewEmbeddingError(ErrCodeNetworkError, ErrMsgNetworkError)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	case status == http.StatusTooManyRequests:
		return NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
	case status >= 500:
		return NewEmbeddingError(ErrCodeServerError, ErrMsgServerError)
	default:
		return NewEmbeddingError(ErrCodeInvalidRequest, ErrMsgInvalidRequest)
	}
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
	RegisterClient("ollama", NewOllamaClient)
}
