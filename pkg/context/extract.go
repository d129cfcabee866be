package context

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/embedding"
	"github.com/wheelswins/pam-context-go/pkg/otel"
)

// SourceExtractor 单来源片段提取器
type SourceExtractor interface {
	// Name 返回来源名称（用于日志和指标）
	Name() string

	// Extract 从原始上下文中提取片段
	Extract(ctx context.Context, userID, message string, raw RawContext) ([]Snippet, error)
}

// ProfileExtractor 从用户画像提取片段
type ProfileExtractor struct{}

// Name 返回来源名称
func (e *ProfileExtractor) Name() string { return string(SourceProfile) }

// Extract 从用户画像提取片段
func (e *ProfileExtractor) Extract(_ context.Context, _, message string, raw RawContext) ([]Snippet, error) {
	profile := raw.UserProfile
	if profile == nil {
		return nil, nil
	}

	fields := []struct {
		content  string
		category Category
	}{
		{profile.TravelPreferences, CategoryTravel},
		{profile.VehicleInfo, CategoryTechnical},
		{profile.BudgetPreferences, CategoryPersonal},
	}

	var snippets []Snippet
	for _, f := range fields {
		if f.content == "" {
			continue
		}
		score := lexicalOverlap(message, f.content) * SourceProfile.Weight()
		snippets = append(snippets, NewSnippet(f.content, SourceProfile, f.category, score))
	}
	return snippets, nil
}

// MemoryExtractor 从近期记忆提取片段
//
// 对话历史按最新优先应用近因权重 1.0 - 0.1×i（最多 10 轮）；
// 用户行为模式作为 recent_memory 来源提取。
type MemoryExtractor struct{}

// Name 返回来源名称
func (e *MemoryExtractor) Name() string { return string(SourceRecentMemory) }

// Extract 从近期记忆提取片段
func (e *MemoryExtractor) Extract(_ context.Context, _, message string, raw RawContext) ([]Snippet, error) {
	memory := raw.RecentMemory
	if memory == nil {
		return nil, nil
	}

	var snippets []Snippet

	// 对话历史：最新的在前，近因权重逐轮递减
	history := memory.ConversationHistory
	if len(history) > 10 {
		history = history[:10]
	}
	for i, turn := range history {
		content := turn.UserMessage
		if content == "" {
			continue
		}
		recency := 1.0 - 0.1*float64(i)
		score := lexicalOverlap(message, content) * SourceConversation.Weight() * recency
		opts := []SnippetOption{}
		if !turn.Timestamp.IsZero() {
			opts = append(opts, WithTimestamp(turn.Timestamp))
		}
		snippets = append(snippets, NewSnippet(content, SourceConversation, CategoryConversation, score, opts...))
	}

	// 用户行为模式
	patternNames := make([]string, 0, len(memory.UserPatterns))
	for name := range memory.UserPatterns {
		patternNames = append(patternNames, name)
	}
	sort.Strings(patternNames)
	for _, name := range patternNames {
		content := fmt.Sprintf("User pattern %s: %s", name, memory.UserPatterns[name])
		score := lexicalOverlap(message, content) * SourceRecentMemory.Weight()
		snippets = append(snippets, NewSnippet(content, SourceRecentMemory, CategoryInteractionStyle, score))
	}

	return snippets, nil
}

// EmotionalExtractor 从情感上下文提取片段
type EmotionalExtractor struct{}

// Name 返回来源名称
func (e *EmotionalExtractor) Name() string { return string(SourceEmotional) }

// Extract 从情感上下文提取片段
func (e *EmotionalExtractor) Extract(_ context.Context, _, message string, raw RawContext) ([]Snippet, error) {
	emotional := raw.EmotionalContext
	if emotional == nil {
		return nil, nil
	}

	var snippets []Snippet
	add := func(content string, category Category) {
		if content == "" {
			return
		}
		score := lexicalOverlap(message, content) * SourceEmotional.Weight()
		snippets = append(snippets, NewSnippet(content, SourceEmotional, category, score))
	}

	if emotional.CurrentEmotion != "" {
		add(fmt.Sprintf("Current emotional state: %s", emotional.CurrentEmotion), CategoryEmotional)
	}
	if emotional.RelationshipStage != "" {
		add(fmt.Sprintf("Relationship stage: %s", emotional.RelationshipStage), CategoryRelationship)
	}
	for _, indicator := range emotional.SupportIndicators {
		add(indicator, CategoryEmotional)
	}

	return snippets, nil
}

// ProactiveExtractor 从主动建议提取片段
type ProactiveExtractor struct{}

// Name 返回来源名称
func (e *ProactiveExtractor) Name() string { return string(SourceProactive) }

// Extract 从主动建议提取片段
func (e *ProactiveExtractor) Extract(_ context.Context, _, message string, raw RawContext) ([]Snippet, error) {
	items := raw.ProactiveItems
	if items == nil {
		return nil, nil
	}

	var snippets []Snippet
	add := func(content string) {
		if content == "" {
			return
		}
		score := lexicalOverlap(message, content) * SourceProactive.Weight()
		snippets = append(snippets, NewSnippet(content, SourceProactive, CategoryProactive, score))
	}

	for _, opp := range items.Opportunities {
		add(fmt.Sprintf("Opportunity: %s", opp))
	}
	for _, action := range items.SuggestedActions {
		add(fmt.Sprintf("Suggested action: %s", action))
	}

	return snippets, nil
}

// Searcher 历史交互的语义检索接口，由记忆子系统实现
type Searcher interface {
	Search(ctx context.Context, userID, query string, topK int) ([]embedding.Match, error)
}

// historicalTemplates 无检索后端时的合成模板
var historicalTemplates = []string{
	"User has previously planned road trips with camping stops",
	"User prefers scenic routes over fastest routes",
}

// HistoricalExtractor 从历史交互提取片段
//
// 配置了 Searcher 时执行真实的语义检索；否则在消息包含
// 旅行关键词时回退到合成模板。检索失败降级到模板，不报错。
type HistoricalExtractor struct {
	searcher Searcher
	topK     int
}

// NewHistoricalExtractor 创建历史片段提取器；searcher 可为 nil
func NewHistoricalExtractor(searcher Searcher) *HistoricalExtractor {
	return &HistoricalExtractor{searcher: searcher, topK: 3}
}

// Name 返回来源名称
func (e *HistoricalExtractor) Name() string { return string(SourceHistorical) }

// Extract 从历史交互提取片段
func (e *HistoricalExtractor) Extract(ctx context.Context, userID, message string, _ RawContext) ([]Snippet, error) {
	if e.searcher != nil {
		matches, err := e.searcher.Search(ctx, userID, message, e.topK)
		if err == nil && len(matches) > 0 {
			snippets := make([]Snippet, 0, len(matches))
			for _, m := range matches {
				score := float64(m.Score) * SourceHistorical.Weight()
				snippets = append(snippets, NewSnippet(m.Content, SourceHistorical, CategoryConversation, score))
			}
			return snippets, nil
		}
		if err != nil {
			return e.templates(message), err
		}
	}
	return e.templates(message), nil
}

// templates 返回合成模板片段（仅当消息包含旅行关键词时）
func (e *HistoricalExtractor) templates(message string) []Snippet {
	if !hasTravelKeyword(message) {
		return nil
	}
	snippets := make([]Snippet, 0, len(historicalTemplates))
	for _, tpl := range historicalTemplates {
		score := lexicalOverlap(message, tpl) * SourceHistorical.Weight()
		snippets = append(snippets, NewSnippet(tpl, SourceHistorical, CategoryTravel, score))
	}
	return snippets
}

// Extractor 组合提取器：并发执行各来源提取，单来源失败降级为
// 该来源零片段，绝不中断整个流水线。
type Extractor struct {
	extractors []SourceExtractor
	timeout    time.Duration
	logger     otel.Logger
	metrics    otel.Metrics
}

// ExtractorOption 组合提取器配置选项
type ExtractorOption func(*Extractor)

// WithSearcher 启用基于语义检索的历史片段提取
func WithSearcher(searcher Searcher) ExtractorOption {
	return func(e *Extractor) {
		for i, src := range e.extractors {
			if _, ok := src.(*HistoricalExtractor); ok {
				e.extractors[i] = NewHistoricalExtractor(searcher)
			}
		}
	}
}

// WithExtractTimeout 设置整轮提取的超时时间
//
// 超时后尚未返回的来源降级为零片段；0 表示不限时。
func WithExtractTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// WithExtractorLogger 设置日志器
func WithExtractorLogger(logger otel.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithExtractorMetrics 设置指标收集器
func WithExtractorMetrics(metrics otel.Metrics) ExtractorOption {
	return func(e *Extractor) {
		e.metrics = metrics
	}
}

// NewExtractor 创建组合提取器
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		extractors: []SourceExtractor{
			&ProfileExtractor{},
			&MemoryExtractor{},
			&EmotionalExtractor{},
			&ProactiveExtractor{},
			NewHistoricalExtractor(nil),
		},
		logger:  otel.NewNoopLogger(),
		metrics: otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve 并发提取所有来源的片段，按相关性降序返回。
//
// 相同分数的片段保持来源内的插入顺序；来源间按提取器注册顺序合并。
func (e *Extractor) Retrieve(ctx context.Context, userID, message string, raw RawContext) []Snippet {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	results := make([][]Snippet, len(e.extractors))

	var wg sync.WaitGroup
	for i, src := range e.extractors {
		wg.Add(1)
		go func(i int, src SourceExtractor) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.WithContext(ctx).Warn("extractor panicked, source skipped",
						"source", src.Name(), "panic", r)
					results[i] = nil
				}
			}()

			snippets, err := src.Extract(ctx, userID, message, raw)
			if err != nil {
				e.logger.WithContext(ctx).Warn("extraction degraded",
					"source", src.Name(), "error", err)
			}
			results[i] = snippets
		}(i, src)
	}
	wg.Wait()

	var all []Snippet
	for i, snippets := range results {
		all = append(all, snippets...)
		e.metrics.Counter(otel.MetricSnippetsExtracted).Add(ctx, int64(len(snippets)),
			otel.NewAttr(otel.AttrSnippetSource, e.extractors[i].Name()))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].RelevanceScore > all[j].RelevanceScore
	})
	return all
}
