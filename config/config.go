package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 PDFRAG_VECTORDB_PATH
const EnvPrefix = "PDFRAG"

// Config 应用程序配置结构体
// 所有组件都通过显式传入的配置构造，不依赖全局变量
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	Document DocumentConfig `mapstructure:"document"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DataConfig 输入文档配置
type DataConfig struct {
	Source     string      `mapstructure:"source"`     // 文档来源：local 或 minio
	Path       string      `mapstructure:"path"`       // 本地输入目录
	Extensions []string    `mapstructure:"extensions"` // 需要加载的文件扩展名
	Minio      MinioConfig `mapstructure:"minio"`      // MinIO配置
}

// MinioConfig MinIO文档来源配置
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// VectorDBConfig 向量数据库配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type"`     // 向量数据库类型：sqlite, memory, faiss
	Path     string `mapstructure:"path"`     // 持久化目录
	Dim      int    `mapstructure:"dim"`      // 向量维度
	Distance string `mapstructure:"distance"` // 距离度量方式：cosine, l2, dot
}

// DocumentConfig 文本分段配置
type DocumentConfig struct {
	SplitType    string `mapstructure:"split_type"`    // 分割类型：paragraph, sentence, length
	ChunkSize    int    `mapstructure:"chunk_size"`    // 分块大小
	ChunkOverlap int    `mapstructure:"chunk_overlap"` // 分块重叠大小
}

// IngestConfig 入库配置
type IngestConfig struct {
	BatchSize int    `mapstructure:"batch_size"` // 每次写入向量库的最大条数
	IDMode    string `mapstructure:"id_mode"`    // 分块ID分配方式：grouped 或 contiguous
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider"`    // 提供商：openai, ollama, local
	Model      string        `mapstructure:"model"`       // 模型名称
	APIKey     string        `mapstructure:"api_key"`     // API密钥
	BaseURL    string        `mapstructure:"base_url"`    // API端点
	BatchSize  int           `mapstructure:"batch_size"`  // 每次请求的文本数量
	Workers    int           `mapstructure:"workers"`     // 并行请求数
	Dimensions int           `mapstructure:"dimensions"`  // 向量维度
	Timeout    time.Duration `mapstructure:"timeout"`     // 单次请求超时，0表示不设置
	MaxRetries int           `mapstructure:"max_retries"` // 限流时的重试次数，默认不重试
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`      // 提供商：openai, ollama
	Model        string        `mapstructure:"model"`         // 模型名称
	APIKey       string        `mapstructure:"api_key"`       // API密钥
	BaseURL      string        `mapstructure:"base_url"`      // API端点
	MaxTokens    int           `mapstructure:"max_tokens"`    // 最大生成token数量
	Temperature  float32       `mapstructure:"temperature"`   // 采样温度
	TopP         float32       `mapstructure:"top_p"`         // 核采样阈值，0表示使用服务端默认值
	Timeout      time.Duration `mapstructure:"timeout"`       // 单次请求超时，0表示不设置
	Template     string        `mapstructure:"template"`      // 问答提示词模板，为空时使用内置模板
	EvalTemplate string        `mapstructure:"eval_template"` // 评估提示词模板，为空时使用内置模板
}

// SearchConfig 检索配置
type SearchConfig struct {
	Limit    int     `mapstructure:"limit"`     // 返回的分块数量(top-k)
	MinScore float32 `mapstructure:"min_score"` // 最低相似度分数
}

// CacheConfig 问答缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	Format     string `mapstructure:"format"`       // json 或 text
	File       string `mapstructure:"file"`         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件最大大小
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin运行模式
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load 从文件和环境变量加载配置
// configPath 为空时尝试读取当前目录下的 config.yaml，文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	return LoadWithViper(viper.New(), configPath)
}

// LoadWithViper 使用调用方提供的viper实例加载配置
// 命令行参数可以提前通过 v.BindPFlag 绑定到对应的键上
func LoadWithViper(v *viper.Viper, configPath string) (*Config, error) {
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// 没有配置文件时使用默认值
		case configPath != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("config file not found: %s", configPath)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 支持环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandEnvironmentVariables(&cfg)
	return &cfg, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// expandEnvironmentVariables 展开形如 ${NAME} 的配置值
func expandEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Embed.APIKey,
		&cfg.LLM.APIKey,
		&cfg.Data.Minio.AccessKey,
		&cfg.Data.Minio.SecretKey,
		&cfg.Cache.Password,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 输入文档
	v.SetDefault("data.source", "local")
	v.SetDefault("data.path", "data")
	v.SetDefault("data.extensions", []string{".pdf"})
	v.SetDefault("data.minio.endpoint", "")
	v.SetDefault("data.minio.access_key", "")
	v.SetDefault("data.minio.secret_key", "")
	v.SetDefault("data.minio.bucket", "documents")
	v.SetDefault("data.minio.prefix", "")
	v.SetDefault("data.minio.use_ssl", false)

	// 向量数据库
	v.SetDefault("vectordb.type", "sqlite")
	v.SetDefault("vectordb.path", "chroma")
	v.SetDefault("vectordb.dim", 768)
	v.SetDefault("vectordb.distance", "cosine")

	// 文本分段
	v.SetDefault("document.split_type", "length")
	v.SetDefault("document.chunk_size", 1000)
	v.SetDefault("document.chunk_overlap", 100)

	// 入库
	v.SetDefault("ingest.batch_size", 5000)
	v.SetDefault("ingest.id_mode", "grouped")

	// Embedding
	v.SetDefault("embed.provider", "ollama")
	v.SetDefault("embed.model", "nomic-embed-text")
	v.SetDefault("embed.api_key", "")
	v.SetDefault("embed.base_url", "")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.workers", 1)
	v.SetDefault("embed.dimensions", 768)
	v.SetDefault("embed.timeout", "0s")
	v.SetDefault("embed.max_retries", 0)

	// LLM
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "mistral")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 0.0)
	v.SetDefault("llm.timeout", "0s")
	v.SetDefault("llm.template", "")
	v.SetDefault("llm.eval_template", "")

	// 检索
	v.SetDefault("search.limit", 5)
	v.SetDefault("search.min_score", 0.0)

	// 缓存
	v.SetDefault("cache.enable", false)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 3600)

	// 日志
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	// HTTP服务
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
}
