package vectordb

import (
	"fmt"
	"sync"
	"time"
)

// MemoryRepository 内存向量仓库实现
// 数据不落盘，用于测试和一次性运行
type MemoryRepository struct {
	mu        sync.RWMutex
	dimension int
	distType  DistanceType
	documents map[string]Document // 文档ID到文档的映射
	order     []string            // 插入顺序
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine
	}

	return &MemoryRepository{
		dimension: config.Dimension,
		distType:  distType,
		documents: make(map[string]Document),
	}, nil
}

// Add 添加单个文档到内存仓库
func (r *MemoryRepository) Add(doc Document) error {
	return r.AddBatch([]Document{doc})
}

// AddBatch 批量添加文档，任何一条校验失败时整批不写入
func (r *MemoryRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	prepared := make([]Document, len(docs))
	now := time.Now()
	for i, doc := range docs {
		if err := prepareDocument(&doc, r.dimension, r.distType); err != nil {
			return err
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		prepared[i] = doc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(prepared))
	for _, doc := range prepared {
		if _, exists := r.documents[doc.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		if _, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}

	for _, doc := range prepared {
		r.documents[doc.ID] = doc
		r.order = append(r.order, doc.ID)
	}
	return nil
}

// Get 获取单个文档
func (r *MemoryRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete 删除单个文档
func (r *MemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[id]; !exists {
		return ErrDocumentNotFound
	}
	delete(r.documents, id)
	r.compactOrder()
	return nil
}

// DeleteBySource 删除指定来源的所有分块
func (r *MemoryRepository) DeleteBySource(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, doc := range r.documents {
		if doc.Source == source {
			delete(r.documents, id)
		}
	}
	r.compactOrder()
	return nil
}

// compactOrder 移除已删除文档的顺序记录，调用方需持有写锁
func (r *MemoryRepository) compactOrder() {
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.documents[id]; ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

// IDs 返回所有文档ID
func (r *MemoryRepository) IDs() (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make(map[string]struct{}, len(r.documents))
	for id := range r.documents {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Search 相似度搜索
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]Document, 0, len(r.order))
	for _, id := range r.order {
		docs = append(docs, r.documents[id])
	}
	return scanDocuments(vector, docs, r.distType, filter)
}

// Count 获取文档总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.documents), nil
}

// Persist 内存实现无需持久化
func (r *MemoryRepository) Persist() error {
	return nil
}

// Close 对于内存实现这是一个空操作
func (r *MemoryRepository) Close() error {
	return nil
}

// GetDimension 返回向量维数
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
