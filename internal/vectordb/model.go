package vectordb

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// 常用错误定义
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid document ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	ErrDuplicateID      = errors.New("duplicate document ID")
	ErrUnknownType      = errors.New("unknown vector database type")
)

// Document 向量库中的一条分块记录
// ID即分块ID，是判断分块是否已入库的唯一依据
type Document struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Page      int                    `json:"page"`
	Text      string                 `json:"text"`
	Vector    []float32              `json:"vector"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 文档对象
	Score    float32  // 相似度得分
	Distance float32  // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	Sources    []string               // 按文档来源过滤
	Metadata   map[string]interface{} // 按元数据过滤
	MinScore   float32                // 最小相似度分数，0表示不过滤
	MaxResults int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量数据库仓库接口
type Repository interface {
	// Add 添加单个文档
	Add(doc Document) error

	// AddBatch 批量添加文档，已存在的ID返回ErrDuplicateID
	AddBatch(docs []Document) error

	// Get 获取单个文档
	Get(id string) (Document, error)

	// Delete 删除单个文档
	Delete(id string) error

	// DeleteBySource 删除指定来源的所有分块
	DeleteBySource(source string) error

	// IDs 返回所有已存在的文档ID，不加载向量和文本
	IDs() (map[string]struct{}, error)

	// Search 相似度搜索
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取文档总数
	Count() (int, error)

	// Persist 将数据写入持久化目录
	Persist() error

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 关闭数据库连接
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type         string         // 数据库类型：sqlite, memory, faiss
	Path         string         // 持久化目录
	Dimension    int            // 向量维度
	DistanceType DistanceType   // 距离计算类型
	Logger       *logrus.Logger // 日志记录器
}

// PersistPath 返回需要持久化的目录，内存库不写磁盘，返回空字符串
func (c Config) PersistPath() string {
	if c.Type == "memory" {
		return ""
	}
	return c.Path
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, config.Type)
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", config.Dimension)
	}
	if config.DistanceType == "" {
		config.DistanceType = Cosine
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return factory(config)
}
