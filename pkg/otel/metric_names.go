package otel

// 预定义的指标名称
// 遵循 OpenTelemetry 语义约定
const (
	// 流水线指标
	MetricPipelineRuns     = "context.pipeline.runs"         // 计数器: 流水线执行次数
	MetricPipelineDuration = "context.pipeline.duration"     // 直方图: 流水线执行时间(ms)
	MetricPipelineErrors   = "context.pipeline.errors"       // 计数器: 流水线错误次数
	MetricStageDuration    = "context.stage.duration"        // 直方图: 单阶段执行时间(ms)

	// 上下文片段指标
	MetricSnippetsExtracted  = "context.snippets.extracted"  // 计数器: 提取的片段数
	MetricSnippetsIntegrated = "context.snippets.integrated" // 计数器: 整合后保留的片段数
	MetricSnippetsClustered  = "context.snippets.clustered"  // 计数器: 聚类折叠的片段数
	MetricTokensPacked       = "context.tokens.packed"       // 直方图: 打包后的 Token 数
	MetricConfidenceScore    = "context.confidence"          // 直方图: 上下文置信度

	// 转移缓存指标
	MetricTransferWrites    = "context.transfer.writes"      // 计数器: 转移缓存写入次数
	MetricTransferEvictions = "context.transfer.evictions"   // 计数器: 转移缓存淘汰次数

	// 嵌入指标
	MetricEmbeddingRequests = "embedding.requests"           // 计数器: 嵌入请求次数
	MetricEmbeddingErrors   = "embedding.errors"             // 计数器: 嵌入错误次数

	// 记忆指标
	MetricMemoryRecords  = "memory.records"                  // 仪表: 记忆记录数
	MetricMemorySearches = "memory.searches"                 // 计数器: 记忆检索次数
)

// MetricUnit 指标单位
type MetricUnit string

const (
	UnitNone         MetricUnit = ""
	UnitMilliseconds MetricUnit = "ms"
	UnitCount        MetricUnit = "1"
)

// MetricDescription 指标描述
type MetricDescription struct {
	Name        string
	Description string
	Unit        MetricUnit
	Type        string // counter, histogram, gauge
}

// PredefinedMetrics 预定义指标列表
var PredefinedMetrics = []MetricDescription{
	{MetricPipelineRuns, "Number of context pipeline runs", UnitCount, "counter"},
	{MetricPipelineDuration, "Duration of context pipeline runs", UnitMilliseconds, "histogram"},
	{MetricPipelineErrors, "Number of context pipeline errors", UnitCount, "counter"},
	{MetricStageDuration, "Duration of individual pipeline stages", UnitMilliseconds, "histogram"},

	{MetricSnippetsExtracted, "Number of snippets extracted", UnitCount, "counter"},
	{MetricSnippetsIntegrated, "Number of snippets kept after integration", UnitCount, "counter"},
	{MetricSnippetsClustered, "Number of snippets folded by clustering", UnitCount, "counter"},
	{MetricTokensPacked, "Token count after budget packing", UnitCount, "histogram"},
	{MetricConfidenceScore, "Confidence score of integrated context", UnitNone, "histogram"},

	{MetricTransferWrites, "Number of transfer cache writes", UnitCount, "counter"},
	{MetricTransferEvictions, "Number of transfer cache evictions", UnitCount, "counter"},

	{MetricEmbeddingRequests, "Number of embedding requests", UnitCount, "counter"},
	{MetricEmbeddingErrors, "Number of embedding errors", UnitCount, "counter"},

	{MetricMemoryRecords, "Number of interaction memory records", UnitCount, "gauge"},
	{MetricMemorySearches, "Number of interaction memory searches", UnitCount, "counter"},
}
