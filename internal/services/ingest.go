package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyerfyer/pdf-rag/internal/document"
	"github.com/fyerfyer/pdf-rag/internal/embedding"
	"github.com/fyerfyer/pdf-rag/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// DocumentLoader 加载输入文档
type DocumentLoader interface {
	Load(ctx context.Context) ([]document.Document, error)
}

// IngestResult 一次入库的统计结果
type IngestResult struct {
	Documents int `json:"documents"` // 加载的页面数
	Chunks    int `json:"chunks"`    // 切分得到的分块数
	Existing  int `json:"existing"`  // ID已在库中的分块数
	Added     int `json:"added"`     // 新写入的分块数
	Skipped   int `json:"skipped"`   // 本次输入中重复ID被跳过的分块数
}

// IngestService 入库服务
// 负责加载、切分、分配ID，并只把库中不存在的分块向量化后写入
type IngestService struct {
	mu           sync.Mutex
	loader       DocumentLoader
	splitter     document.Splitter
	embedder     embedding.Client
	store        *Store
	idMode       document.IDMode
	batchSize    int // 每次写入向量库的最大条数
	embedBatch   int // 每次嵌入请求的文本数
	embedWorkers int // 并行的嵌入请求数
	logger       *logrus.Logger
}

// IngestOption 入库服务配置选项
type IngestOption func(*IngestService)

// WithIDMode 设置分块ID分配方式
func WithIDMode(mode document.IDMode) IngestOption {
	return func(s *IngestService) {
		s.idMode = mode
	}
}

// WithBatchSize 设置写入向量库的批次大小
func WithBatchSize(size int) IngestOption {
	return func(s *IngestService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithEmbedBatch 设置嵌入请求的批次大小和并行数
func WithEmbedBatch(size, workers int) IngestOption {
	return func(s *IngestService) {
		if size > 0 {
			s.embedBatch = size
		}
		if workers > 0 {
			s.embedWorkers = workers
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIngestService 创建入库服务
func NewIngestService(
	loader DocumentLoader,
	splitter document.Splitter,
	embedder embedding.Client,
	store *Store,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		loader:       loader,
		splitter:     splitter,
		embedder:     embedder,
		store:        store,
		idMode:       document.IDModeGrouped,
		batchSize:    5000,
		embedBatch:   16,
		embedWorkers: 1,
		logger:       logrus.New(),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 执行一次增量入库：加载、切分、写入新分块
func (s *IngestService) Run(ctx context.Context) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loader.Load(ctx)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to load documents: %w", err)
	}

	chunks, err := document.SplitDocuments(docs, s.splitter)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to split documents: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"chunks":    len(chunks),
	}).Info("Split documents into chunks")

	result, err := s.addChunks(ctx, chunks)
	result.Documents = len(docs)
	return result, err
}

// AddChunks 为分块分配ID，只写入库中不存在的分块
// 已存在的记录不会被修改，重复执行时Added为0
func (s *IngestService) AddChunks(ctx context.Context, chunks []document.Chunk) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addChunks(ctx, chunks)
}

func (s *IngestService) addChunks(ctx context.Context, chunks []document.Chunk) (IngestResult, error) {
	result := IngestResult{Chunks: len(chunks)}
	repo, err := s.store.Current()
	if err != nil {
		return result, err
	}

	document.AssignChunkIDs(chunks, s.idMode)

	existing, err := repo.IDs()
	if err != nil {
		return result, fmt.Errorf("failed to list existing ids: %w", err)
	}

	seen := make(map[string]struct{}, len(chunks))
	var fresh []document.Chunk
	for _, chunk := range chunks {
		id := chunk.ID()
		if _, ok := existing[id]; ok {
			result.Existing++
			continue
		}
		if _, ok := seen[id]; ok {
			result.Skipped++
			s.logger.WithField("id", id).Warn("Duplicate chunk id in input, keeping the first occurrence")
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, chunk)
	}

	s.logger.WithField("count", len(existing)).Info("Number of existing chunks in store")

	if len(fresh) == 0 {
		s.logger.Info("No new chunks to add")
		return result, nil
	}
	s.logger.WithField("count", len(fresh)).Info("Adding new chunks")

	texts := make([]string, len(fresh))
	for i, chunk := range fresh {
		texts[i] = chunk.Content
	}
	vectors, err := embedding.NewBatchProcessor(s.embedder, s.embedBatch, s.embedWorkers).Process(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("failed to embed chunks: %w", err)
	}

	records := make([]vectordb.Document, len(fresh))
	for i, chunk := range fresh {
		records[i] = toRecord(chunk, vectors[i])
	}

	for start := 0; start < len(records); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := repo.AddBatch(records[start:end]); err != nil {
			return result, fmt.Errorf("failed to add chunks %d-%d: %w", start, end, err)
		}
		result.Added += end - start
		s.logger.WithFields(logrus.Fields{
			"batch_start": start,
			"batch_end":   end,
		}).Debug("Inserted chunk batch")
	}

	if err := repo.Persist(); err != nil {
		return result, fmt.Errorf("failed to persist vector store: %w", err)
	}
	return result, nil
}

// Reset 删除持久化的向量库并重新打开空库
func (s *IngestService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Reset()
}

// Count 返回向量库中的分块数量
func (s *IngestService) Count() (int, error) {
	repo, err := s.store.Current()
	if err != nil {
		return 0, err
	}
	return repo.Count()
}

// toRecord 将分块转换为向量库记录，除source/page/id外的元数据原样保留
func toRecord(chunk document.Chunk, vector []float32) vectordb.Document {
	metadata := make(map[string]interface{}, len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		metadata[k] = v
	}
	return vectordb.Document{
		ID:       chunk.ID(),
		Source:   chunk.Source(),
		Page:     chunk.Page(),
		Text:     chunk.Content,
		Vector:   vector,
		Metadata: metadata,
	}
}
