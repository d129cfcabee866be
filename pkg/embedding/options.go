package embedding

import "time"

// Options 嵌入客户端配置
type Options struct {
	// APIKey API 密钥
	APIKey string
	// BaseURL API 基础 URL（可选，用于兼容端点）
	BaseURL string
	// Model 嵌入模型名称
	Model string
	// MaxRetries 最大重试次数
	MaxRetries int
	// RetryDelay 重试基础延迟
	RetryDelay time.Duration
}

// Option 配置选项
type Option func(*Options)

// DefaultOptions 返回默认配置
func DefaultOptions() *Options {
	return &Options{
		Model:      "text-embedding-3-small",
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// WithAPIKey 设置 API 密钥
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithBaseURL 设置 API 基础 URL
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// WithModel 设置嵌入模型
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithRetryDelay 设置重试基础延迟
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		o.RetryDelay = d
	}
}
