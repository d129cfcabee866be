// Package config 提供配置加载和管理功能
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config 全局配置结构
type Config struct {
	// Engine 上下文引擎配置
	Engine EngineConfig `koanf:"engine"`
	// Embedding 嵌入服务配置
	Embedding EmbeddingConfig `koanf:"embedding"`
	// Store 存储后端配置
	Store StoreConfig `koanf:"store"`
	// Observability 可观测性配置
	Observability ObservabilityConfig `koanf:"observability"`
}

// EngineConfig 上下文引擎配置
type EngineConfig struct {
	// MaxContextTokens 整合上下文的 Token 预算
	MaxContextTokens int `koanf:"max_context_tokens"`
	// HighRelevanceThreshold 高相关性阈值 [0, 1]
	HighRelevanceThreshold float64 `koanf:"high_relevance_threshold"`
	// ExtractTimeout 单来源提取超时
	ExtractTimeout time.Duration `koanf:"extract_timeout"`
	// TransferCacheSize 每用户转移缓存的摘要上限
	TransferCacheSize int `koanf:"transfer_cache_size"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	// APIKey API 密钥
	APIKey string `koanf:"api_key"`
	// BaseURL API 端点（兼容 OpenAI 协议的服务）
	BaseURL string `koanf:"base_url"`
	// Model 嵌入模型名称
	Model string `koanf:"model"`
	// MaxRetries 最大重试次数
	MaxRetries int `koanf:"max_retries"`
	// RetryDelay 初始重试间隔
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// StoreConfig 存储后端配置
type StoreConfig struct {
	// KVBackend 键值存储后端: memory, sqlite
	KVBackend string `koanf:"kv_backend"`
	// SQLitePath SQLite 数据库文件路径
	SQLitePath string `koanf:"sqlite_path"`
	// GraphBackend 图存储后端: memory, neo4j
	GraphBackend string `koanf:"graph_backend"`
	// Neo4jURI Neo4j 连接地址
	Neo4jURI string `koanf:"neo4j_uri"`
	// Neo4jUsername Neo4j 用户名
	Neo4jUsername string `koanf:"neo4j_username"`
	// Neo4jPassword Neo4j 密码
	Neo4jPassword string `koanf:"neo4j_password"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	// Enabled 是否启用
	Enabled bool `koanf:"enabled"`
	// ServiceName 服务名称
	ServiceName string `koanf:"service_name"`
	// TracerEndpoint 追踪端点
	TracerEndpoint string `koanf:"tracer_endpoint"`
	// MetricsEndpoint 指标端点
	MetricsEndpoint string `koanf:"metrics_endpoint"`
	// SampleRate 采样率 [0, 1]
	SampleRate float64 `koanf:"sample_rate"`
}

// Loader 配置加载器
type Loader struct {
	k *koanf.Koanf
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
	}
}

// LoadEnv 从环境变量加载配置
func (l *Loader) LoadEnv(prefix string) error {
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		// 转换环境变量名: PAM_EMBEDDING_API_KEY -> embedding.api_key
		// 只切分第一个下划线，其余保留为字段名的一部分
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil)
}

// Unmarshal 解析配置到结构体
func (l *Loader) Unmarshal(cfg *Config) error {
	return l.k.Unmarshal("", cfg)
}

// Get 获取配置值
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt 获取整数配置值
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetBool 获取布尔配置值
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// GetDuration 获取时间间隔配置值
func (l *Loader) GetDuration(key string) time.Duration {
	return l.k.Duration(key)
}

// Load 从环境变量加载完整配置
func Load() (*Config, error) {
	loader := NewLoader()

	if err := loader.LoadEnv("PAM_"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WithDefaults 返回填充默认值后的配置副本
func (c Config) WithDefaults() Config {
	applyDefaults(&c)
	return c
}

// applyDefaults 应用默认配置值
func applyDefaults(cfg *Config) {
	// Engine 默认值
	if cfg.Engine.MaxContextTokens == 0 {
		cfg.Engine.MaxContextTokens = 2000
	}
	if cfg.Engine.HighRelevanceThreshold == 0 {
		cfg.Engine.HighRelevanceThreshold = 0.8
	}
	if cfg.Engine.ExtractTimeout == 0 {
		cfg.Engine.ExtractTimeout = 5 * time.Second
	}
	if cfg.Engine.TransferCacheSize == 0 {
		cfg.Engine.TransferCacheSize = 100
	}

	// Embedding 默认值
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.RetryDelay == 0 {
		cfg.Embedding.RetryDelay = 500 * time.Millisecond
	}

	// Store 默认值
	if cfg.Store.KVBackend == "" {
		cfg.Store.KVBackend = "memory"
	}
	if cfg.Store.GraphBackend == "" {
		cfg.Store.GraphBackend = "memory"
	}

	// Observability 默认值
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "pam-context"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Engine.MaxContextTokens < 0 {
		return ErrInvalidTokenBudget
	}
	if c.Engine.HighRelevanceThreshold < 0 || c.Engine.HighRelevanceThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.Engine.TransferCacheSize < 0 {
		return ErrInvalidCacheSize
	}
	if c.Embedding.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	switch c.Store.KVBackend {
	case "memory", "sqlite":
	default:
		return ErrUnknownKVBackend
	}
	switch c.Store.GraphBackend {
	case "memory", "neo4j":
	default:
		return ErrUnknownGraphBackend
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	return nil
}
