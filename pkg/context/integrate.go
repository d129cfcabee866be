package context

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/otel"
)

// ConsistencyChecker 跨片段一致性校验接口
type ConsistencyChecker interface {
	// Consistent 判断片段与其余片段是否一致
	Consistent(snippet Snippet, all []Snippet) bool
}

// passThroughChecker 恒定通过的一致性校验。
// 真正的矛盾检测有待产品决策，这里保留校验管线和降级机制，
// 校验本身始终通过。
type passThroughChecker struct{}

func (passThroughChecker) Consistent(Snippet, []Snippet) bool { return true }

// Integrator 片段整合器：冲突消解、一致性校验、时间衰减、
// 聚类折叠和 Token 预算打包。
//
// Integrate 是其输入的纯函数（时钟可注入），不做任何 I/O。
type Integrator struct {
	maxContextTokens int
	counter          TokenCounter
	checker          ConsistencyChecker
	now              func() time.Time
	metrics          otel.Metrics
}

// IntegratorOption 整合器配置选项
type IntegratorOption func(*Integrator)

// WithMaxContextTokens 设置 Token 预算
func WithMaxContextTokens(n int) IntegratorOption {
	return func(i *Integrator) {
		i.maxContextTokens = n
	}
}

// WithTokenCounter 设置 Token 计数器
func WithTokenCounter(counter TokenCounter) IntegratorOption {
	return func(i *Integrator) {
		i.counter = counter
	}
}

// WithConsistencyChecker 设置一致性校验器
func WithConsistencyChecker(checker ConsistencyChecker) IntegratorOption {
	return func(i *Integrator) {
		i.checker = checker
	}
}

// WithClock 注入时钟（用于确定性测试）
func WithClock(now func() time.Time) IntegratorOption {
	return func(i *Integrator) {
		i.now = now
	}
}

// WithIntegratorMetrics 设置指标收集器
func WithIntegratorMetrics(metrics otel.Metrics) IntegratorOption {
	return func(i *Integrator) {
		i.metrics = metrics
	}
}

// NewIntegrator 创建整合器
func NewIntegrator(opts ...IntegratorOption) *Integrator {
	i := &Integrator{
		maxContextTokens: 2000,
		counter:          NewWordCounter(),
		checker:          passThroughChecker{},
		now:              time.Now,
		metrics:          otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Integrate 按顺序执行五个整合阶段，返回打包后的片段
func (g *Integrator) Integrate(ctx context.Context, snippets []Snippet, message string) []Snippet {
	if len(snippets) == 0 {
		return nil
	}

	resolved := g.resolveConflicts(snippets)
	validated := g.validateConsistency(resolved)
	weighted := g.applyTemporalWeighting(validated)
	clustered := g.clusterRelated(weighted)
	packed := g.packTokenBudget(clustered)

	g.metrics.Counter(otel.MetricSnippetsIntegrated).Add(ctx, int64(len(packed)))
	return packed
}

// groupKey 分组键
type groupKey struct {
	source   Source
	category Category
}

// groupSnippets 按键分组，保持键的首次出现顺序
func groupSnippets(snippets []Snippet, key func(Snippet) groupKey) ([]groupKey, map[groupKey][]Snippet) {
	var order []groupKey
	groups := make(map[groupKey][]Snippet)
	for _, s := range snippets {
		k := key(s)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}
	return order, groups
}

// resolveConflicts 组内冲突消解：按 (source, category) 分组，
// 多于一个时保留 (relevance, timestamp) 最高者；组内超过两个时
// 追加一条合成片段记录被丢弃的数量。
func (g *Integrator) resolveConflicts(snippets []Snippet) []Snippet {
	order, groups := groupSnippets(snippets, func(s Snippet) groupKey {
		return groupKey{s.Source, s.Category}
	})

	var resolved []Snippet
	for _, k := range order {
		group := groups[k]
		if len(group) == 1 {
			resolved = append(resolved, group[0])
			continue
		}

		winner := group[0]
		for _, s := range group[1:] {
			if s.RelevanceScore > winner.RelevanceScore ||
				(s.RelevanceScore == winner.RelevanceScore && s.Timestamp.After(winner.Timestamp)) {
				winner = s
			}
		}
		resolved = append(resolved, winner)

		if len(group) > 2 {
			note := fmt.Sprintf("Resolved %d conflicting entries; kept: %s",
				len(group)-1, truncateRunes(winner.Content, 50))
			resolved = append(resolved, NewSnippet(note, SourceConflictResolution, CategoryMeta,
				winner.RelevanceScore*0.5, WithTimestamp(winner.Timestamp)))
		}
	}
	return resolved
}

// validateConsistency 交叉校验：未通过的片段降权 ×0.7 并加前缀
func (g *Integrator) validateConsistency(snippets []Snippet) []Snippet {
	validated := make([]Snippet, len(snippets))
	for i, s := range snippets {
		if !g.checker.Consistent(s, snippets) {
			s.RelevanceScore *= 0.7
			s.Content = "[Unverified] " + s.Content
		}
		validated[i] = s
	}
	return validated
}

// decayFactor 按片段年龄计算衰减系数
func decayFactor(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 1.0
	case age < 24*time.Hour:
		return 0.8
	case age < 7*24*time.Hour:
		return 0.6
	default:
		return 0.4
	}
}

// applyTemporalWeighting 时间衰减：分数只会下调，不会上调
func (g *Integrator) applyTemporalWeighting(snippets []Snippet) []Snippet {
	now := g.now()
	weighted := make([]Snippet, len(snippets))
	for i, s := range snippets {
		s.RelevanceScore *= decayFactor(now.Sub(s.Timestamp))
		weighted[i] = s
	}
	return weighted
}

// clusterRelated 聚类折叠：按 (category, source) 分组，超过 3 个的组
// 保留相关性前 3，其余折叠为一条合成片段，分数取被折叠片段的算术平均。
func (g *Integrator) clusterRelated(snippets []Snippet) []Snippet {
	order, groups := groupSnippets(snippets, func(s Snippet) groupKey {
		return groupKey{s.Source, s.Category}
	})

	var clustered []Snippet
	for _, k := range order {
		group := groups[k]
		if len(group) <= 3 {
			clustered = append(clustered, group...)
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			return group[i].RelevanceScore > group[j].RelevanceScore
		})
		clustered = append(clustered, group[:3]...)

		folded := group[3:]
		var sum float64
		parts := make([]string, len(folded))
		newest := folded[0].Timestamp
		for i, s := range folded {
			sum += s.RelevanceScore
			parts[i] = truncateRunes(s.Content, 50)
			if s.Timestamp.After(newest) {
				newest = s.Timestamp
			}
		}
		cluster := NewSnippet(strings.Join(parts, "; "), SourceClustered, k.category,
			sum/float64(len(folded)), WithTimestamp(newest))
		clustered = append(clustered, cluster)
	}
	return clustered
}

// packTokenBudget 预算打包：按相关性降序贪心装入；装不下但剩余预算
// 还能容纳至少 10 个词时，截断后以 ×0.8 的分数追加并停止。
func (g *Integrator) packTokenBudget(snippets []Snippet) []Snippet {
	sorted := make([]Snippet, len(snippets))
	copy(sorted, snippets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})

	var packed []Snippet
	used := 0
	for _, s := range sorted {
		cost := g.counter.Count(s.Content)
		if used+cost <= g.maxContextTokens {
			packed = append(packed, s)
			used += cost
			continue
		}

		// 尝试部分装入
		truncated, ok := g.truncateToBudget(s.Content, g.maxContextTokens-used)
		if ok {
			s.Content = truncated
			s.RelevanceScore *= 0.8
			packed = append(packed, s)
		}
		break
	}
	return packed
}

// truncateToBudget 返回预算内能容纳的最长词前缀；
// 不足 10 个词时放弃部分装入。
func (g *Integrator) truncateToBudget(content string, budget int) (string, bool) {
	if budget <= 0 {
		return "", false
	}
	words := strings.Fields(content)
	if len(words) < 10 {
		return "", false
	}

	// 二分查找预算内的最长前缀
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if g.counter.Count(strings.Join(words[:mid], " ")) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo < 10 {
		return "", false
	}
	return strings.Join(words[:lo], " "), true
}

// truncateRunes 按字符截断
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
