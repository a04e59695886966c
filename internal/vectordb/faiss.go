//go:build faiss

package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
	"github.com/sirupsen/logrus"
)

// faiss持久化目录中的文件名
const (
	faissIndexFile = "index.faiss"
	faissMetaFile  = "index.meta.json"
)

// FaissRepository 基于Faiss平面索引的向量仓库
// 索引本身不支持删除，删除的文档只从元数据中移除，检索时跳过
type FaissRepository struct {
	mu        sync.RWMutex
	index     faiss.Index
	documents map[string]Document
	positions []string // 索引位置到文档ID，已删除的位置为空字符串
	dimension int
	distType  DistanceType
	dir       string
	logger    *logrus.Logger
}

// faissMeta 与索引一起保存的文档元数据
type faissMeta struct {
	Documents map[string]Document `json:"documents"`
	Positions []string            `json:"positions"`
}

// NewFaissRepository 创建新的Faiss向量仓库，目录中已有索引时加载
func NewFaissRepository(config Config) (Repository, error) {
	repo := &FaissRepository{
		documents: make(map[string]Document),
		dimension: config.Dimension,
		distType:  config.DistanceType,
		dir:       config.Path,
		logger:    config.Logger,
	}

	indexPath := repo.indexPath()
	if indexPath != "" && fileExists(indexPath) {
		index, err := faiss.ReadIndex(indexPath, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read index file: %w", err)
		}
		if index.D() != config.Dimension {
			index.Delete()
			return nil, fmt.Errorf("%w: index has %d, configured %d", ErrInvalidDimension, index.D(), config.Dimension)
		}
		repo.index = index
		if err := repo.loadMetadata(); err != nil {
			return nil, err
		}
		return repo, nil
	}

	index, err := createFaissIndex(config.Dimension, config.DistanceType)
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %w", err)
	}
	repo.index = index
	return repo, nil
}

// createFaissIndex 创建Faiss索引，余弦距离使用归一化向量加内积
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	metric := faiss.MetricL2
	if distType == Cosine || distType == DotProduct {
		metric = faiss.MetricInnerProduct
	}
	return faiss.NewIndexFlat(dimension, metric)
}

func (r *FaissRepository) indexPath() string {
	if r.dir == "" {
		return ""
	}
	return filepath.Join(r.dir, faissIndexFile)
}

// Add 添加单个文档
func (r *FaissRepository) Add(doc Document) error {
	return r.AddBatch([]Document{doc})
}

// AddBatch 批量添加文档
func (r *FaissRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	prepared := make([]Document, len(docs))
	flat := make([]float32, 0, len(docs)*r.dimension)
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if err := prepareDocument(&doc, r.dimension, r.distType); err != nil {
			return err
		}
		if _, exists := r.documents[doc.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		if _, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		seen[doc.ID] = struct{}{}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		prepared[i] = doc
		flat = append(flat, doc.Vector...)
	}

	if err := r.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}
	for _, doc := range prepared {
		r.documents[doc.ID] = doc
		r.positions = append(r.positions, doc.ID)
	}
	return nil
}

// Get 获取单个文档
func (r *FaissRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete 删除单个文档
func (r *FaissRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[id]; !exists {
		return ErrDocumentNotFound
	}
	r.removeLocked(func(doc Document) bool { return doc.ID == id })
	return nil
}

// DeleteBySource 删除指定来源的所有分块
func (r *FaissRepository) DeleteBySource(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(func(doc Document) bool { return doc.Source == source })
	return nil
}

func (r *FaissRepository) removeLocked(match func(Document) bool) {
	for pos, id := range r.positions {
		if id == "" {
			continue
		}
		if doc, ok := r.documents[id]; ok && match(doc) {
			delete(r.documents, id)
			r.positions[pos] = ""
		}
	}
}

// IDs 返回所有文档ID
func (r *FaissRepository) IDs() (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make(map[string]struct{}, len(r.documents))
	for id := range r.documents {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Search 相似度搜索
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := int(r.index.Ntotal())
	if len(r.documents) == 0 || total == 0 {
		return []SearchResult{}, nil
	}

	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}
	// 删除和过滤会丢弃部分结果，多取一些候选
	queryLimit := min(total, k*2+(total-len(r.documents)))

	distances, labels, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	sources := sourceSet(filter.Sources)
	results := make([]SearchResult, 0, k)
	for i, label := range labels {
		if label < 0 || int(label) >= len(r.positions) {
			continue
		}
		id := r.positions[label]
		if id == "" {
			continue
		}
		doc := r.documents[id]
		if !matchFilter(doc, sources, filter.Metadata) {
			continue
		}

		dist := distances[i]
		var score float32
		switch r.distType {
		case Cosine:
			// 内积即余弦相似度
			score = dist
			dist = 1 - dist
		default:
			score = DistanceToScore(dist, r.distType)
		}
		if filter.MinScore > 0 && score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{Document: doc, Score: score, Distance: dist})
		if len(results) >= k {
			break
		}
	}

	SortSearchResults(results)
	return results, nil
}

// Count 获取文档总数
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// Persist 保存索引和元数据到持久化目录
func (r *FaissRepository) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

// Close 保存并释放索引
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		return nil
	}
	err := r.saveLocked()
	r.index.Delete()
	r.index = nil
	return err
}

// GetDimension 返回向量维数
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

func (r *FaissRepository) saveLocked() error {
	if r.dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath()); err != nil {
		return fmt.Errorf("failed to write index to file: %w", err)
	}

	data, err := json.Marshal(faissMeta{Documents: r.documents, Positions: r.positions})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, faissMetaFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"path":      r.dir,
		"documents": len(r.documents),
	}).Debug("Faiss index persisted")
	return nil
}

// loadMetadata 从文件加载文档元数据
func (r *FaissRepository) loadMetadata() error {
	path := filepath.Join(r.dir, faissMetaFile)
	if !fileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta faissMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if meta.Documents != nil {
		r.documents = meta.Documents
	}
	r.positions = meta.Positions
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
