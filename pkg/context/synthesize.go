package context

import (
	"sort"
	"strings"
)

// Synthesizer 上下文合成器：将整合后的片段分区渲染为
// 面向提示词的文本块，并执行高亮重排。
type Synthesizer struct {
	highRelevanceThreshold float64
	counter                TokenCounter
}

// SynthesizerOption 合成器配置选项
type SynthesizerOption func(*Synthesizer)

// WithHighRelevanceThreshold 设置高相关性阈值
func WithHighRelevanceThreshold(threshold float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.highRelevanceThreshold = threshold
	}
}

// WithSynthesizerCounter 设置 Token 计数器
func WithSynthesizerCounter(counter TokenCounter) SynthesizerOption {
	return func(s *Synthesizer) {
		s.counter = counter
	}
}

// NewSynthesizer 创建合成器
func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		highRelevanceThreshold: 0.8,
		counter:                NewWordCounter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate 将片段分区渲染为 IntegratedContext
//
// 相关性达到阈值的片段进入核心块（前 5），其余进入辅助块（前 8）；
// 情感/关系类别和主动类别各取前 3 单独成块。
func (s *Synthesizer) Generate(snippets []Snippet, _ string) IntegratedContext {
	if len(snippets) == 0 {
		return IntegratedContext{
			ContextSummary: "No significant context available.",
		}
	}

	sorted := make([]Snippet, len(snippets))
	copy(sorted, snippets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})

	var critical, supporting, emotional, proactive []Snippet
	for _, sn := range sorted {
		if sn.RelevanceScore >= s.highRelevanceThreshold {
			critical = append(critical, sn)
		} else {
			supporting = append(supporting, sn)
		}
		switch sn.Category {
		case CategoryEmotional, CategoryRelationship:
			emotional = append(emotional, sn)
		case CategoryProactive:
			proactive = append(proactive, sn)
		}
	}

	integrated := IntegratedContext{
		CoreContext:       renderBlock(critical, 5, "- "),
		SupportingContext: renderBlock(supporting, 8, "• "),
		EmotionalContext:  renderBlock(emotional, 3, "- "),
		ProactiveContext:  renderBlock(proactive, 3, "- "),
		ContextSummary:    summarize(sorted),
	}

	blocks := strings.Join([]string{
		integrated.CoreContext,
		integrated.SupportingContext,
		integrated.EmotionalContext,
		integrated.ProactiveContext,
	}, " ")
	integrated.TokenCount = s.counter.Count(blocks)
	integrated.ConfidenceScore = confidence(sorted)

	return integrated
}

// renderBlock 渲染片段块：每行一个片段，带前缀
func renderBlock(snippets []Snippet, limit int, prefix string) string {
	if len(snippets) > limit {
		snippets = snippets[:limit]
	}
	lines := make([]string, 0, len(snippets))
	for _, s := range snippets {
		lines = append(lines, prefix+s.Content)
	}
	return strings.Join(lines, "\n")
}

// summarize 生成摘要：总体前 3 的片段各截断 100 字符
func summarize(sorted []Snippet) string {
	top := sorted
	if len(top) > 3 {
		top = top[:3]
	}
	parts := make([]string, 0, len(top))
	for _, s := range top {
		parts = append(parts, truncateRunes(s.Content, 100))
	}
	if len(parts) == 0 {
		return "No significant context available."
	}
	return "Key Context: " + strings.Join(parts, " | ")
}

// confidence 置信度：平均相关性与覆盖度启发式的均值
func confidence(snippets []Snippet) float64 {
	if len(snippets) == 0 {
		return 0
	}
	var sum float64
	for _, s := range snippets {
		sum += s.RelevanceScore
	}
	avg := sum / float64(len(snippets))

	coverage := float64(len(snippets)) / 10
	if coverage > 1 {
		coverage = 1
	}
	return (avg + coverage) / 2
}

// Highlight 高亮重排：把与当前消息最相关的行复制到核心块末尾，
// 使其在拼装后的提示词中最靠近模型的下一个 Token 决策。
// 纯字符串变换，不产生新的打分。
func (s *Synthesizer) Highlight(integrated IntegratedContext, message string) IntegratedContext {
	highlighted := integrated

	immediate := immediateRelevanceLines(integrated, message)
	if len(immediate) > 0 {
		highlighted.CoreContext = integrated.CoreContext +
			"\n\nIMMEDIATE RELEVANCE:\n" + strings.Join(immediate, "\n")
	}

	if integrated.EmotionalContext != "" {
		highlighted.EmotionalContext = "EMOTIONAL AWARENESS:\n" + integrated.EmotionalContext
	}
	if integrated.ProactiveContext != "" {
		highlighted.ProactiveContext = "PROACTIVE OPPORTUNITIES:\n" + integrated.ProactiveContext
	}

	return highlighted
}

// immediateRelevanceLines 扫描核心块与辅助块前 3 行，
// 返回与消息至少有 2 个词重叠的行（最多 3 行）。
func immediateRelevanceLines(integrated IntegratedContext, message string) []string {
	messageWords := splitWords(message)

	var candidates []string
	if integrated.CoreContext != "" {
		candidates = append(candidates, strings.Split(integrated.CoreContext, "\n")...)
	}
	if integrated.SupportingContext != "" {
		supporting := strings.Split(integrated.SupportingContext, "\n")
		if len(supporting) > 3 {
			supporting = supporting[:3]
		}
		candidates = append(candidates, supporting...)
	}

	var lines []string
	for _, line := range candidates {
		overlap := 0
		for w := range splitWords(line) {
			if messageWords[w] {
				overlap++
			}
		}
		if overlap >= 2 {
			lines = append(lines, line)
			if len(lines) == 3 {
				break
			}
		}
	}
	return lines
}
