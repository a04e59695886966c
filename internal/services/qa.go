package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/pdf-rag/internal/cache"
	"github.com/fyerfyer/pdf-rag/internal/embedding"
	"github.com/fyerfyer/pdf-rag/internal/llm"
	"github.com/fyerfyer/pdf-rag/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// ErrEmptyQuestion 问题为空
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Answer 问答结果
type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"answer"`
	Sources  []string `json:"sources"` // 检索到的分块ID
	Cached   bool     `json:"cached"`
}

// Evaluation 回答评估结果
type Evaluation struct {
	Answer   *Answer `json:"answer"`
	Expected string  `json:"expected"`
	Passed   bool    `json:"passed"`
	Verdict  string  `json:"verdict"`
}

// QAService 问答服务
// 负责协调向量检索和大模型生成答案，调用外部服务时不额外做重试和超时控制
type QAService struct {
	embedder    embedding.Client   // 嵌入模型客户端
	store       RepositoryProvider // 向量数据库
	rag         *llm.RAGService    // RAG服务
	cache       cache.Cache        // 缓存，为nil时不缓存
	cacheTTL    time.Duration      // 缓存有效期
	searchLimit int                // 搜索结果数量限制
	minScore    float32            // 最低相似度分数
	logger      *logrus.Logger
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// WithCache 设置回答缓存
func WithCache(c cache.Cache, ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithSearchLimit 设置搜索结果数量
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithMinScore 设置最低相似度分数
func WithMinScore(score float32) QAOption {
	return func(s *QAService) {
		s.minScore = score
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewQAService 创建问答服务实例
func NewQAService(
	embedder embedding.Client,
	store RepositoryProvider,
	rag *llm.RAGService,
	opts ...QAOption,
) *QAService {
	service := &QAService{
		embedder:    embedder,
		store:       store,
		rag:         rag,
		searchLimit: 5,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Answer 检索与问题最相关的分块，并让大模型基于这些分块回答
func (s *QAService) Answer(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	cacheKey := cache.AnswerKey(question, s.searchLimit)
	if cached, ok := s.cached(ctx, cacheKey); ok {
		cached.Question = question
		return cached, nil
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	repo, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	results, err := repo.Search(vector, vectordb.SearchFilter{
		MinScore:   s.minScore,
		MaxResults: s.searchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	contexts := make([]string, len(results))
	sources := make([]string, len(results))
	for i, result := range results {
		contexts[i] = result.Document.Text
		sources[i] = result.Document.ID
	}

	s.logger.WithFields(logrus.Fields{
		"question": question,
		"sources":  sources,
	}).Debug("Retrieved context for question")

	resp, err := s.rag.Answer(ctx, question, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := &Answer{
		Question: question,
		Text:     resp.Answer,
		Sources:  sources,
	}
	s.save(ctx, cacheKey, answer)
	return answer, nil
}

// Evaluate 回答问题，并让大模型判断回答是否与期望回答一致
func (s *QAService) Evaluate(ctx context.Context, question, expected string) (*Evaluation, error) {
	answer, err := s.Answer(ctx, question)
	if err != nil {
		return nil, err
	}

	eval, err := s.rag.Evaluate(ctx, expected, answer.Text)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"question": question,
		"passed":   eval.Passed,
		"verdict":  eval.Verdict,
	}).Info("Evaluated answer")

	return &Evaluation{
		Answer:   answer,
		Expected: expected,
		Passed:   eval.Passed,
		Verdict:  eval.Verdict,
	}, nil
}

// ClearCache 清除问答缓存
func (s *QAService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// cached 读取缓存的回答，缓存出错时按未命中处理
func (s *QAService) cached(ctx context.Context, key string) (*Answer, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read answer cache")
		return nil, false
	}
	if !found {
		return nil, false
	}
	var answer Answer
	if err := json.Unmarshal([]byte(value), &answer); err != nil {
		s.logger.WithError(err).Warn("Failed to decode cached answer")
		return nil, false
	}
	answer.Cached = true
	return &answer, true
}

func (s *QAService) save(ctx context.Context, key string, answer *Answer) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to write answer cache")
	}
}
