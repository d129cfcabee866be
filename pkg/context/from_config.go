package context

import (
	"context"
	"fmt"

	"github.com/wheelswins/pam-context-go/pkg/core/config"
	"github.com/wheelswins/pam-context-go/pkg/embedding"
	"github.com/wheelswins/pam-context-go/pkg/memory"
	"github.com/wheelswins/pam-context-go/pkg/memory/store"
	"github.com/wheelswins/pam-context-go/pkg/otel"
)

// NewPipelineFromConfig 从配置装配完整流水线
//
// 按 cfg.Store 选择键值与图存储后端，按 cfg.Embedding 创建嵌入客户端
// （无 API 密钥时交互记忆回退到本地 TF-IDF），按 cfg.Observability
// 初始化日志、追踪和指标。返回的清理函数按装配的逆序释放资源。
func NewPipelineFromConfig(cfg config.Config) (*Pipeline, func(context.Context) error, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	var cleanups []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var lastErr error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](ctx); err != nil {
				lastErr = err
			}
		}
		return lastErr
	}
	fail := func(err error) (*Pipeline, func(context.Context) error, error) {
		_ = cleanup(context.Background())
		return nil, nil, err
	}

	var (
		logger  otel.Logger  = otel.NewNoopLogger()
		tracer  otel.Tracer  = otel.NewNoopTracer()
		metrics otel.Metrics = otel.NewNoopMetrics()
	)
	if cfg.Observability.Enabled {
		provider, err := otel.NewProvider(observabilityConfig(cfg.Observability))
		if err != nil {
			return fail(fmt.Errorf("failed to init observability: %w", err))
		}
		cleanups = append(cleanups, provider.Shutdown)
		logger = provider.Logger()
		tracer = provider.Tracer()
		metrics = provider.Metrics()
	}

	kv, err := kvStoreFromConfig(cfg.Store)
	if err != nil {
		return fail(fmt.Errorf("failed to create kv store: %w", err))
	}
	cleanups = append(cleanups, func(context.Context) error { return kv.Close() })

	graph, err := graphStoreFromConfig(cfg.Store)
	if err != nil {
		return fail(fmt.Errorf("failed to create graph store: %w", err))
	}
	cleanups = append(cleanups, func(context.Context) error { return graph.Close() })

	interactionOpts := []memory.InteractionOption{
		memory.WithEntityMiner(memory.NewEntityMiner(graph)),
		memory.WithLogger(logger),
		memory.WithMetrics(metrics),
	}
	if cfg.Embedding.APIKey != "" {
		embedder, err := embedderFromConfig(cfg.Embedding)
		if err != nil {
			return fail(fmt.Errorf("failed to create embedder: %w", err))
		}
		interactionOpts = append(interactionOpts, memory.WithEmbedder(embedder))
	}
	interactions := memory.NewInteractionStore(interactionOpts...)

	pipeline := NewPipeline(
		WithPipelineExtractor(NewExtractor(
			WithSearcher(interactions),
			WithExtractTimeout(cfg.Engine.ExtractTimeout),
			WithExtractorLogger(logger),
			WithExtractorMetrics(metrics),
		)),
		WithPipelineIntegrator(NewIntegrator(
			WithMaxContextTokens(cfg.Engine.MaxContextTokens),
			WithIntegratorMetrics(metrics),
		)),
		WithPipelineSynthesizer(NewSynthesizer(
			WithHighRelevanceThreshold(cfg.Engine.HighRelevanceThreshold),
		)),
		WithPipelineTransfer(NewTransferStore(
			WithKVStore(kv),
			WithCacheSize(cfg.Engine.TransferCacheSize),
			WithTransferMetrics(metrics),
		)),
		WithPipelineLogger(logger),
		WithPipelineTracer(tracer),
		WithPipelineMetrics(metrics),
	)

	return pipeline, cleanup, nil
}

// kvStoreFromConfig 根据配置创建键值存储后端
func kvStoreFromConfig(cfg config.StoreConfig) (store.KVStore, error) {
	switch cfg.KVBackend {
	case "sqlite":
		return store.NewSQLiteKVStore(cfg.SQLitePath)
	case "memory", "":
		return store.NewMemoryKVStore(), nil
	default:
		return nil, fmt.Errorf("unsupported kv backend: %s", cfg.KVBackend)
	}
}

// graphStoreFromConfig 根据配置创建图存储后端
func graphStoreFromConfig(cfg config.StoreConfig) (store.GraphStore, error) {
	switch cfg.GraphBackend {
	case "neo4j":
		return store.NewNeo4jGraphStore(store.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUsername,
			Password: cfg.Neo4jPassword,
		})
	case "memory", "":
		return store.NewMemoryGraphStore(), nil
	default:
		return nil, fmt.Errorf("unsupported graph backend: %s", cfg.GraphBackend)
	}
}

// embedderFromConfig 根据配置创建嵌入客户端
func embedderFromConfig(cfg config.EmbeddingConfig) (*embedding.OpenAIEmbedder, error) {
	opts := []embedding.Option{
		embedding.WithAPIKey(cfg.APIKey),
		embedding.WithModel(cfg.Model),
		embedding.WithMaxRetries(cfg.MaxRetries),
		embedding.WithRetryDelay(cfg.RetryDelay),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.BaseURL))
	}
	return embedding.NewOpenAIEmbedder(opts...)
}

// observabilityConfig 将应用级可观测性配置映射到 otel 配置
//
// 未指定端点时使用标准输出导出器，便于本地调试。
func observabilityConfig(cfg config.ObservabilityConfig) otel.Config {
	return otel.Config{
		Enabled:     true,
		ServiceName: cfg.ServiceName,
		Tracing: otel.TracingConfig{
			Enabled:    true,
			Exporter:   exporterFor(cfg.TracerEndpoint),
			Endpoint:   cfg.TracerEndpoint,
			Insecure:   true,
			SampleRate: cfg.SampleRate,
		},
		Metrics: otel.MetricsConfig{
			Enabled:  true,
			Exporter: exporterFor(cfg.MetricsEndpoint),
			Endpoint: cfg.MetricsEndpoint,
			Insecure: true,
		},
	}
}

// exporterFor 端点为空时选用标准输出导出器
func exporterFor(endpoint string) string {
	if endpoint == "" {
		return string(otel.ExporterStdout)
	}
	return string(otel.ExporterOTLPGRPC)
}
