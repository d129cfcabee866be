package context

import (
	"context"
	"errors"
	"testing"

	"github.com/wheelswins/pam-context-go/pkg/core/config"
)

func TestNewPipelineFromConfigDefaults(t *testing.T) {
	pipeline, cleanup, err := NewPipelineFromConfig(config.Config{})
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	defer cleanup(context.Background())

	if pipeline == nil {
		t.Fatal("expected a pipeline")
	}

	raw := RawContext{
		UserProfile: &UserProfile{
			TravelPreferences: "prefers scenic camping routes",
		},
	}
	result := pipeline.Process(context.Background(), "u1", "plan a camping trip", raw)
	if result.CoreContext == "" && result.SupportingContext == "" {
		t.Error("expected context from the profile source")
	}

	// 转移缓存挂在配置选择的 KV 后端上
	count, err := pipeline.Transfer().SummaryCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("summary count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored summary, got %d", count)
	}
}

func TestNewPipelineFromConfigEngineSettings(t *testing.T) {
	cfg := config.Config{}
	cfg.Engine.HighRelevanceThreshold = 0.5
	cfg.Engine.TransferCacheSize = 2

	pipeline, cleanup, err := NewPipelineFromConfig(cfg)
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	defer cleanup(context.Background())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := pipeline.Transfer().StoreSummary(ctx, "u1", "summary", "msg"); err != nil {
			t.Fatalf("store summary: %v", err)
		}
	}
	// 写入都在同一小时桶内，覆盖同一键
	count, err := pipeline.Transfer().SummaryCount(ctx, "u1")
	if err != nil {
		t.Fatalf("summary count: %v", err)
	}
	if count > 2 {
		t.Errorf("cache size 2 exceeded: %d", count)
	}
}

func TestNewPipelineFromConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{
			name:    "threshold out of range",
			mutate:  func(c *config.Config) { c.Engine.HighRelevanceThreshold = 2 },
			wantErr: config.ErrInvalidThreshold,
		},
		{
			name:    "unknown kv backend",
			mutate:  func(c *config.Config) { c.Store.KVBackend = "redis" },
			wantErr: config.ErrUnknownKVBackend,
		},
		{
			name:    "unknown graph backend",
			mutate:  func(c *config.Config) { c.Store.GraphBackend = "dgraph" },
			wantErr: config.ErrUnknownGraphBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{}
			tt.mutate(&cfg)
			_, _, err := NewPipelineFromConfig(cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewPipelineFromConfigSQLiteBackend(t *testing.T) {
	cfg := config.Config{}
	cfg.Store.KVBackend = "sqlite"
	cfg.Store.SQLitePath = t.TempDir() + "/transfer.db"

	pipeline, cleanup, err := NewPipelineFromConfig(cfg)
	if err != nil {
		t.Fatalf("build pipeline with sqlite backend: %v", err)
	}
	defer cleanup(context.Background())

	ctx := context.Background()
	if err := pipeline.Transfer().StoreSummary(ctx, "u1", "summary", "msg"); err != nil {
		t.Fatalf("store summary: %v", err)
	}
	count, err := pipeline.Transfer().SummaryCount(ctx, "u1")
	if err != nil {
		t.Fatalf("summary count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored summary, got %d", count)
	}
}
