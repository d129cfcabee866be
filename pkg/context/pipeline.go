package context

import (
	"context"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/otel"
)

// Pipeline 上下文工程流水线：retrieve → integrate → generate →
// highlight → transfer，严格顺序执行，每个阶段消费上一阶段的
// 完整输出。
//
// 流水线是尽力而为的增强层：任何阶段的降级都只意味着更少的
// 上下文，绝不向调用方抛出用户可见的错误。
type Pipeline struct {
	extractor   *Extractor
	integrator  *Integrator
	synthesizer *Synthesizer
	transfer    *TransferStore

	logger  otel.Logger
	tracer  otel.Tracer
	metrics otel.Metrics
}

// PipelineOption 流水线配置选项
type PipelineOption func(*Pipeline)

// WithPipelineExtractor 设置提取器
func WithPipelineExtractor(extractor *Extractor) PipelineOption {
	return func(p *Pipeline) {
		p.extractor = extractor
	}
}

// WithPipelineIntegrator 设置整合器
func WithPipelineIntegrator(integrator *Integrator) PipelineOption {
	return func(p *Pipeline) {
		p.integrator = integrator
	}
}

// WithPipelineSynthesizer 设置合成器
func WithPipelineSynthesizer(synthesizer *Synthesizer) PipelineOption {
	return func(p *Pipeline) {
		p.synthesizer = synthesizer
	}
}

// WithPipelineTransfer 设置转移缓存
func WithPipelineTransfer(transfer *TransferStore) PipelineOption {
	return func(p *Pipeline) {
		p.transfer = transfer
	}
}

// WithPipelineLogger 设置日志器
func WithPipelineLogger(logger otel.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPipelineTracer 设置追踪器
func WithPipelineTracer(tracer otel.Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithPipelineMetrics 设置指标收集器
func WithPipelineMetrics(metrics otel.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// NewPipeline 创建流水线；未配置的组件使用默认实现
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractor:   NewExtractor(),
		integrator:  NewIntegrator(),
		synthesizer: NewSynthesizer(),
		transfer:    NewTransferStore(),
		logger:      otel.NewNoopLogger(),
		tracer:      otel.NewNoopTracer(),
		metrics:     otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transfer 返回流水线使用的转移缓存，供调用方读取洞察和交接条目
func (p *Pipeline) Transfer() *TransferStore {
	return p.transfer
}

// Process 对一条入站消息执行完整流水线，返回高亮后的整合上下文。
//
// 转移阶段的失败只记录日志，不影响返回值。
func (p *Pipeline) Process(ctx context.Context, userID, message string, raw RawContext) IntegratedContext {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "context.pipeline.process",
		otel.UserID(userID))
	defer span.End()

	p.metrics.Counter(otel.MetricPipelineRuns).Add(ctx, 1)

	// retrieve
	snippets := p.runStage(ctx, "retrieve", func() []Snippet {
		return p.extractor.Retrieve(ctx, userID, message, raw)
	})

	// integrate
	integrated := p.runStage(ctx, "integrate", func() []Snippet {
		return p.integrator.Integrate(ctx, snippets, message)
	})

	// generate
	var result IntegratedContext
	p.runStage(ctx, "generate", func() []Snippet {
		result = p.synthesizer.Generate(integrated, userID)
		return nil
	})

	// highlight
	p.runStage(ctx, "highlight", func() []Snippet {
		result = p.synthesizer.Highlight(result, message)
		return nil
	})

	// transfer：尽力而为，失败不传播
	p.runStage(ctx, "transfer", func() []Snippet {
		if err := p.transfer.StoreSummary(ctx, userID, result.ContextSummary, message); err != nil {
			p.logger.WithContext(ctx).Warn("summary transfer degraded", "user_id", userID, "error", err)
		}
		if err := p.transfer.UpdateInsights(ctx, userID, result); err != nil {
			p.logger.WithContext(ctx).Warn("insights transfer degraded", "user_id", userID, "error", err)
		}
		if err := p.transfer.PrepareHandoff(ctx, userID, result); err != nil {
			p.logger.WithContext(ctx).Warn("handoff transfer degraded", "user_id", userID, "error", err)
		}
		return nil
	})

	span.SetAttributes(
		otel.ContextTokens(result.TokenCount),
		otel.ContextConfidence(result.ConfidenceScore),
	)
	p.metrics.Histogram(otel.MetricTokensPacked).Record(ctx, float64(result.TokenCount))
	p.metrics.Histogram(otel.MetricConfidenceScore).Record(ctx, result.ConfidenceScore)
	p.metrics.Histogram(otel.MetricPipelineDuration).Record(ctx,
		float64(time.Since(start).Milliseconds()))

	p.logger.WithContext(ctx).Debug("context pipeline completed",
		"user_id", userID,
		"snippets", len(snippets),
		"packed", len(integrated),
		"tokens", result.TokenCount,
		"confidence", result.ConfidenceScore,
	)
	return result
}

// runStage 执行单个阶段并记录耗时
func (p *Pipeline) runStage(ctx context.Context, stage string, fn func() []Snippet) []Snippet {
	start := time.Now()
	_, span := p.tracer.Start(ctx, "context.stage."+stage, otel.PipelineStage(stage))
	defer span.End()

	out := fn()

	p.metrics.Histogram(otel.MetricStageDuration).Record(ctx,
		float64(time.Since(start).Milliseconds()),
		otel.NewAttr(otel.AttrPipelineStage, stage))
	return out
}
