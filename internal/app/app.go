package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pdf-rag/config"
	"github.com/fyerfyer/pdf-rag/internal/cache"
	"github.com/fyerfyer/pdf-rag/internal/document"
	"github.com/fyerfyer/pdf-rag/internal/embedding"
	"github.com/fyerfyer/pdf-rag/internal/llm"
	"github.com/fyerfyer/pdf-rag/internal/logger"
	"github.com/fyerfyer/pdf-rag/internal/services"
	"github.com/fyerfyer/pdf-rag/internal/vectordb"
	"github.com/fyerfyer/pdf-rag/pkg/storage"
)

// App 按配置组装好的应用组件
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Storage storage.Storage
	Store   *services.Store
	Ingest  *services.IngestService
	QA      *services.QAService

	cache cache.Cache
}

// Option 组装选项，主要供测试替换外部模型客户端
type Option func(*options)

type options struct {
	logger   *logrus.Logger
	embedder embedding.Client
	llm      llm.Client
}

// WithLogger 使用给定的日志记录器
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEmbedder 使用给定的嵌入客户端
func WithEmbedder(c embedding.Client) Option {
	return func(o *options) { o.embedder = c }
}

// WithLLM 使用给定的大模型客户端
func WithLLM(c llm.Client) Option {
	return func(o *options) { o.llm = c }
}

// New 根据配置创建所有组件
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	if log == nil {
		log = logger.New(cfg.Log)
	}

	fileStorage, err := NewStorage(cfg.Data)
	if err != nil {
		return nil, err
	}

	splitter, err := document.NewTextSplitter(document.SplitterConfig{
		SplitType:    document.SplitType(cfg.Document.SplitType),
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid document config: %w", err)
	}

	idMode, err := document.ParseIDMode(cfg.Ingest.IDMode)
	if err != nil {
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		embedder, err = NewEmbedder(cfg.Embed)
		if err != nil {
			return nil, err
		}
	}

	llmClient := o.llm
	if llmClient == nil {
		llmClient, err = NewLLM(cfg.LLM)
		if err != nil {
			return nil, err
		}
	}

	dim := cfg.VectorDB.Dim
	if dim <= 0 {
		dim = cfg.Embed.Dimensions
	}
	store, err := services.NewRepositoryStore(vectordb.Config{
		Type:         cfg.VectorDB.Type,
		Path:         cfg.VectorDB.Path,
		Dimension:    dim,
		DistanceType: vectordb.DistanceType(cfg.VectorDB.Distance),
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Logger:  log,
		Storage: fileStorage,
		Store:   store,
	}

	loader := document.NewLoader(fileStorage,
		document.WithExtensions(cfg.Data.Extensions...),
		document.WithLoaderLogger(log),
	)
	app.Ingest = services.NewIngestService(loader, splitter, embedder, store,
		services.WithIDMode(idMode),
		services.WithBatchSize(cfg.Ingest.BatchSize),
		services.WithEmbedBatch(cfg.Embed.BatchSize, cfg.Embed.Workers),
		services.WithLogger(log),
	)

	qaOpts := []services.QAOption{
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
		services.WithQALogger(log),
	}
	if cfg.Cache.Enable {
		c, err := cache.NewCache(cache.Config{
			Type:          cfg.Cache.Type,
			RedisAddr:     cfg.Cache.Address,
			RedisPassword: cfg.Cache.Password,
			RedisDB:       cfg.Cache.DB,
			Prefix:        cache.DefaultConfig().Prefix,
			DefaultTTL:    time.Duration(cfg.Cache.TTL) * time.Second,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		app.cache = c
		qaOpts = append(qaOpts, services.WithCache(c, time.Duration(cfg.Cache.TTL)*time.Second))
	}
	app.QA = services.NewQAService(embedder, store, NewRAG(llmClient, cfg.LLM), qaOpts...)

	log.WithFields(logrus.Fields{
		"vectordb": cfg.VectorDB.Type,
		"path":     cfg.VectorDB.Path,
		"embed":    cfg.Embed.Provider + "/" + embedder.Name(),
		"llm":      cfg.LLM.Provider + "/" + llmClient.Name(),
		"cache":    cfg.Cache.Enable,
	}).Debug("Application initialized")

	return app, nil
}

// Close 关闭向量库和缓存
func (a *App) Close() error {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close cache")
		}
	}
	return a.Store.Close()
}

// NewStorage 创建输入文档存储
func NewStorage(cfg config.DataConfig) (storage.Storage, error) {
	switch cfg.Source {
	case "", "local":
		return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Path})
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported data source: %s", cfg.Source)
	}
}

// NewEmbedder 创建嵌入客户端
func NewEmbedder(cfg config.EmbedConfig) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithDimensions(cfg.Dimensions),
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithTimeout(cfg.Timeout),
		embedding.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, embedding.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, embedding.WithModel(cfg.Model))
	}

	client, err := embedding.NewClient(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return client, nil
}

// NewLLM 创建大模型客户端
func NewLLM(cfg config.LLMConfig) (llm.Client, error) {
	opts := []llm.Option{
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
		llm.WithTopP(cfg.TopP),
		llm.WithTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Model))
	}

	client, err := llm.NewClient(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return client, nil
}

// NewRAG 创建问答提示词服务，配置了模板时替换内置模板
func NewRAG(client llm.Client, cfg config.LLMConfig) *llm.RAGService {
	var opts []llm.RAGOption
	if cfg.Template != "" {
		opts = append(opts, llm.WithTemplate(cfg.Template))
	}
	if cfg.EvalTemplate != "" {
		opts = append(opts, llm.WithEvalTemplate(cfg.EvalTemplate))
	}
	return llm.NewRAG(client, opts...)
}
