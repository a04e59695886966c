package vectordb

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fyerfyer/pdf-rag/internal/database"
	"github.com/fyerfyer/pdf-rag/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SQLiteFileName 持久化目录中的数据库文件名
const SQLiteFileName = "chunks.db"

// sqliteInBatch IN查询中单次携带的最大参数个数
const sqliteInBatch = 500

// SQLiteRepository 基于gorm和sqlite的持久化向量仓库
// 向量以JSON形式保存，检索时在内存中计算距离
type SQLiteRepository struct {
	mu        sync.RWMutex
	db        *gorm.DB
	dimension int
	distType  DistanceType
	path      string
	logger    *logrus.Logger
}

// NewSQLiteRepository 在config.Path目录下打开或创建向量仓库
func NewSQLiteRepository(config Config) (Repository, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite vector store requires a persist path")
	}

	dsn := filepath.Join(config.Path, SQLiteFileName)
	db, err := database.Open(database.DefaultConfig(dsn), config.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite vector store: %w", err)
	}

	return &SQLiteRepository{
		db:        db,
		dimension: config.Dimension,
		distType:  config.DistanceType,
		path:      config.Path,
		logger:    config.Logger,
	}, nil
}

// Add 添加单个文档
func (r *SQLiteRepository) Add(doc Document) error {
	return r.AddBatch([]Document{doc})
}

// AddBatch 在一个事务中写入一批文档
func (r *SQLiteRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	records := make([]models.ChunkRecord, len(docs))
	ids := make([]string, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		doc := docs[i]
		if err := prepareDocument(&doc, r.dimension, r.distType); err != nil {
			return err
		}
		if _, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		seen[doc.ID] = struct{}{}

		record, err := toRecord(doc)
		if err != nil {
			return err
		}
		records[i] = record
		ids[i] = doc.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(ids); start += sqliteInBatch {
			end := min(start+sqliteInBatch, len(ids))

			var existing []string
			if err := tx.Model(&models.ChunkRecord{}).
				Where("id IN ?", ids[start:end]).
				Limit(1).
				Pluck("id", &existing).Error; err != nil {
				return fmt.Errorf("failed to check existing ids: %w", err)
			}
			if len(existing) > 0 {
				return fmt.Errorf("%w: %s", ErrDuplicateID, existing[0])
			}
		}

		if err := tx.CreateInBatches(records, sqliteInBatch).Error; err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

// Get 获取单个文档
func (r *SQLiteRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var record models.ChunkRecord
	if err := r.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	return fromRecord(record)
}

// Delete 删除单个文档
func (r *SQLiteRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := r.db.Delete(&models.ChunkRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteBySource 删除指定来源的所有分块
func (r *SQLiteRepository) DeleteBySource(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Where("source = ?", source).Delete(&models.ChunkRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", source, err)
	}
	return nil
}

// IDs 只读取主键列
func (r *SQLiteRepository) IDs() (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	if err := r.db.Model(&models.ChunkRecord{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Search 相似度搜索，来源过滤在SQL中完成
func (r *SQLiteRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	query := r.db.Model(&models.ChunkRecord{})
	if len(filter.Sources) > 0 {
		query = query.Where("source IN ?", filter.Sources)
	}

	var (
		results   []SearchResult
		decodeErr error
	)
	var batch []models.ChunkRecord
	err := query.FindInBatches(&batch, 1000, func(tx *gorm.DB, _ int) error {
		docs := make([]Document, 0, len(batch))
		for _, record := range batch {
			doc, err := fromRecord(record)
			if err != nil {
				decodeErr = err
				return err
			}
			docs = append(docs, doc)
		}

		partial, err := scanDocuments(vector, docs, r.distType, filter)
		if err != nil {
			decodeErr = err
			return err
		}
		results = append(results, partial...)
		return nil
	}).Error
	if decodeErr != nil {
		return nil, decodeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}

	SortSearchResults(results)
	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// Count 获取文档总数
func (r *SQLiteRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	if err := r.db.Model(&models.ChunkRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// Persist 写入在事务提交时已经落盘，这里只做检查点
func (r *SQLiteRepository) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return fmt.Errorf("failed to checkpoint sqlite store: %w", err)
	}
	r.logger.WithField("path", r.path).Debug("Vector store persisted")
	return nil
}

// Close 关闭数据库连接
func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return database.Close(r.db)
}

// GetDimension 返回向量维数
func (r *SQLiteRepository) GetDimension() int {
	return r.dimension
}

func toRecord(doc Document) (models.ChunkRecord, error) {
	vector, err := json.Marshal(doc.Vector)
	if err != nil {
		return models.ChunkRecord{}, fmt.Errorf("failed to encode vector of %s: %w", doc.ID, err)
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return models.ChunkRecord{}, fmt.Errorf("failed to encode metadata of %s: %w", doc.ID, err)
	}

	return models.ChunkRecord{
		ID:        doc.ID,
		Source:    doc.Source,
		Page:      doc.Page,
		Text:      doc.Text,
		Vector:    datatypes.JSON(vector),
		Metadata:  datatypes.JSON(meta),
		CreatedAt: doc.CreatedAt,
	}, nil
}

func fromRecord(record models.ChunkRecord) (Document, error) {
	doc := Document{
		ID:        record.ID,
		Source:    record.Source,
		Page:      record.Page,
		Text:      record.Text,
		CreatedAt: record.CreatedAt,
	}
	if err := json.Unmarshal(record.Vector, &doc.Vector); err != nil {
		return Document{}, fmt.Errorf("failed to decode vector of %s: %w", record.ID, err)
	}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("failed to decode metadata of %s: %w", record.ID, err)
		}
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	return doc, nil
}

func init() {
	RegisterRepository("sqlite", NewSQLiteRepository)
}
