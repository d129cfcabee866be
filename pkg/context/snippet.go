package context

import (
	"time"

	"github.com/google/uuid"
)

// Source 片段来源
type Source string

const (
	// SourceProfile 用户画像
	SourceProfile Source = "profile"
	// SourceRecentMemory 近期记忆
	SourceRecentMemory Source = "recent_memory"
	// SourceConversation 对话历史
	SourceConversation Source = "conversation"
	// SourceProactive 主动建议
	SourceProactive Source = "proactive"
	// SourceHistorical 历史交互
	SourceHistorical Source = "historical"
	// SourceEmotional 情感上下文
	SourceEmotional Source = "emotional_context"
	// SourceClustered 聚类折叠产生的合成片段
	SourceClustered Source = "clustered"
	// SourceConflictResolution 冲突消解产生的合成片段
	SourceConflictResolution Source = "conflict_resolution"
)

// sourceWeights 来源权重表
var sourceWeights = map[Source]float64{
	SourceProfile:      0.9,
	SourceRecentMemory: 0.8,
	SourceEmotional:    0.8,
	SourceConversation: 0.7,
	SourceProactive:    0.6,
	SourceHistorical:   0.4,
}

// Weight 返回来源权重；未知来源返回 0.5
func (s Source) Weight() float64 {
	if w, ok := sourceWeights[s]; ok {
		return w
	}
	return 0.5
}

// Category 片段类别
type Category string

const (
	// CategoryPersonal 个人信息
	CategoryPersonal Category = "personal"
	// CategoryTravel 旅行相关
	CategoryTravel Category = "travel"
	// CategoryTechnical 技术/车辆
	CategoryTechnical Category = "technical"
	// CategoryEmotional 情感状态
	CategoryEmotional Category = "emotional"
	// CategoryRelationship 用户关系
	CategoryRelationship Category = "relationship"
	// CategoryProactive 主动建议
	CategoryProactive Category = "proactive"
	// CategoryMeta 流水线元信息
	CategoryMeta Category = "meta"
	// CategoryConversation 对话内容
	CategoryConversation Category = "conversation"
	// CategoryInteractionStyle 交互风格
	CategoryInteractionStyle Category = "interaction_style"
)

// Snippet 上下文片段：检索阶段的基本单元
type Snippet struct {
	// ID 片段标识，单次流水线运行内唯一，仅用于去重和追踪
	ID string `json:"snippet_id"`
	// Content 片段内容
	Content string `json:"content"`
	// Source 来源
	Source Source `json:"source"`
	// Category 类别
	Category Category `json:"category"`
	// RelevanceScore 相关性分数，各阶段会重新计算；
	// 整合过程只会下调或重新加权，绝不上调
	RelevanceScore float64 `json:"relevance_score"`
	// Timestamp 观测时间，用于时间衰减
	Timestamp time.Time `json:"timestamp"`
	// Relationships 相关片段 ID 列表（目前仅存储，不参与逻辑）
	Relationships []string `json:"relationships,omitempty"`
}

// SnippetOption 片段创建选项
type SnippetOption func(*Snippet)

// WithTimestamp 设置观测时间
func WithTimestamp(t time.Time) SnippetOption {
	return func(s *Snippet) {
		s.Timestamp = t
	}
}

// WithRelationships 设置相关片段 ID
func WithRelationships(ids ...string) SnippetOption {
	return func(s *Snippet) {
		s.Relationships = ids
	}
}

// NewSnippet 创建上下文片段
func NewSnippet(content string, source Source, category Category, relevance float64, opts ...SnippetOption) Snippet {
	s := Snippet{
		ID:             uuid.New().String(),
		Content:        content,
		Source:         source,
		Category:       category,
		RelevanceScore: relevance,
		Timestamp:      time.Now(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// IntegratedContext 合成阶段的输出：四个文本块加摘要和置信度
type IntegratedContext struct {
	// CoreContext 核心上下文（高相关片段）
	CoreContext string `json:"core_context"`
	// SupportingContext 辅助上下文
	SupportingContext string `json:"supporting_context"`
	// EmotionalContext 情感上下文
	EmotionalContext string `json:"emotional_context"`
	// ProactiveContext 主动建议上下文
	ProactiveContext string `json:"proactive_context"`
	// ContextSummary 摘要
	ContextSummary string `json:"context_summary"`
	// TokenCount 四个文本块的估算 Token 数
	TokenCount int `json:"token_count"`
	// ConfidenceScore 置信度 [0, 1]
	ConfidenceScore float64 `json:"confidence_score"`
}
