package otel

import "go.opentelemetry.io/otel/attribute"

// 预定义的语义属性键
const (
	// 流水线相关属性
	AttrPipelineStage = "pipeline.stage"
	AttrUserID        = "user.id"

	// 片段相关属性
	AttrSnippetSource   = "snippet.source"
	AttrSnippetCategory = "snippet.category"
	AttrSnippetCount    = "snippet.count"

	// 上下文相关属性
	AttrContextTokens     = "context.tokens"
	AttrContextConfidence = "context.confidence"

	// 嵌入相关属性
	AttrEmbeddingModel = "embedding.model"

	// Error 相关属性
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// PipelineStage 创建流水线阶段属性
func PipelineStage(stage string) attribute.KeyValue {
	return attribute.String(AttrPipelineStage, stage)
}

// UserID 创建用户标识属性
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

// SnippetSource 创建片段来源属性
func SnippetSource(source string) attribute.KeyValue {
	return attribute.String(AttrSnippetSource, source)
}

// SnippetCount 创建片段数量属性
func SnippetCount(n int) attribute.KeyValue {
	return attribute.Int(AttrSnippetCount, n)
}

// ContextTokens 创建上下文 Token 数属性
func ContextTokens(n int) attribute.KeyValue {
	return attribute.Int(AttrContextTokens, n)
}

// ContextConfidence 创建上下文置信度属性
func ContextConfidence(score float64) attribute.KeyValue {
	return attribute.Float64(AttrContextConfidence, score)
}
