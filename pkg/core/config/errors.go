package config

import "errors"

// 配置验证相关错误
var (
	// ErrInvalidTokenBudget Token 预算无效
	ErrInvalidTokenBudget = errors.New("max context tokens must be non-negative")
	// ErrInvalidThreshold 高相关性阈值无效
	ErrInvalidThreshold = errors.New("high relevance threshold must be between 0 and 1")
	// ErrInvalidCacheSize 缓存大小无效
	ErrInvalidCacheSize = errors.New("transfer cache size must be non-negative")
	// ErrInvalidMaxRetries 重试次数无效
	ErrInvalidMaxRetries = errors.New("invalid max retries value")
	// ErrUnknownKVBackend 未知的键值存储后端
	ErrUnknownKVBackend = errors.New("unknown kv backend")
	// ErrUnknownGraphBackend 未知的图存储后端
	ErrUnknownGraphBackend = errors.New("unknown graph backend")
	// ErrInvalidSampleRate 采样率无效
	ErrInvalidSampleRate = errors.New("sample rate must be between 0 and 1")
)
