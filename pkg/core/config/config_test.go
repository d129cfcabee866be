package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Engine.MaxContextTokens != 2000 {
		t.Errorf("expected default token budget 2000, got %d", cfg.Engine.MaxContextTokens)
	}
	if cfg.Engine.HighRelevanceThreshold != 0.8 {
		t.Errorf("expected default threshold 0.8, got %v", cfg.Engine.HighRelevanceThreshold)
	}
	if cfg.Engine.TransferCacheSize != 100 {
		t.Errorf("expected default cache size 100, got %d", cfg.Engine.TransferCacheSize)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("unexpected default model: %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.RetryDelay != 500*time.Millisecond {
		t.Errorf("unexpected default retry delay: %v", cfg.Embedding.RetryDelay)
	}
	if cfg.Store.KVBackend != "memory" || cfg.Store.GraphBackend != "memory" {
		t.Errorf("unexpected default backends: %s/%s", cfg.Store.KVBackend, cfg.Store.GraphBackend)
	}
	if cfg.Observability.ServiceName != "pam-context" {
		t.Errorf("unexpected default service name: %s", cfg.Observability.ServiceName)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAM_ENGINE_MAX_CONTEXT_TOKENS", "512")
	t.Setenv("PAM_EMBEDDING_API_KEY", "sk-test")
	t.Setenv("PAM_STORE_KV_BACKEND", "sqlite")
	t.Setenv("PAM_STORE_SQLITE_PATH", "/tmp/pam.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Engine.MaxContextTokens != 512 {
		t.Errorf("expected 512 tokens, got %d", cfg.Engine.MaxContextTokens)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Store.KVBackend != "sqlite" || cfg.Store.SQLitePath != "/tmp/pam.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		expected error
	}{
		{"negative tokens", func(c *Config) { c.Engine.MaxContextTokens = -1 }, ErrInvalidTokenBudget},
		{"threshold above one", func(c *Config) { c.Engine.HighRelevanceThreshold = 1.5 }, ErrInvalidThreshold},
		{"negative cache", func(c *Config) { c.Engine.TransferCacheSize = -1 }, ErrInvalidCacheSize},
		{"negative retries", func(c *Config) { c.Embedding.MaxRetries = -1 }, ErrInvalidMaxRetries},
		{"unknown kv backend", func(c *Config) { c.Store.KVBackend = "redis" }, ErrUnknownKVBackend},
		{"unknown graph backend", func(c *Config) { c.Store.GraphBackend = "dgraph" }, ErrUnknownGraphBackend},
		{"bad sample rate", func(c *Config) { c.Observability.SampleRate = 2 }, ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	if cfg.Engine.MaxContextTokens != 2000 {
		t.Errorf("expected default token budget 2000, got %d", cfg.Engine.MaxContextTokens)
	}
	if cfg.Engine.HighRelevanceThreshold != 0.8 {
		t.Errorf("expected default threshold 0.8, got %v", cfg.Engine.HighRelevanceThreshold)
	}
	if cfg.Store.KVBackend != "memory" || cfg.Store.GraphBackend != "memory" {
		t.Errorf("expected memory backends, got %s/%s", cfg.Store.KVBackend, cfg.Store.GraphBackend)
	}

	// 已设置的值不被默认值覆盖
	custom := Config{}
	custom.Engine.MaxContextTokens = 1500
	if got := custom.WithDefaults().Engine.MaxContextTokens; got != 1500 {
		t.Errorf("expected 1500 preserved, got %d", got)
	}
}
