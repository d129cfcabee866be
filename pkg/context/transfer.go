package context

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/memory/store"
	"github.com/wheelswins/pam-context-go/pkg/otel"
)

// 转移缓存键格式
const (
	summaryKeyFormat  = "context_summary:%s:%s" // user_id, YYYYMMDDHH
	insightsKeyFormat = "user_insights:%s"
	handoffKeyFormat  = "context_handoff:%s"

	// hourBucketLayout 摘要键的小时粒度时间桶
	hourBucketLayout = "2006010215"
)

// SummaryEntry 转移缓存中的摘要条目
type SummaryEntry struct {
	// Summary 上下文摘要
	Summary string `json:"summary"`
	// LastMessage 触发本次流水线的消息
	LastMessage string `json:"last_message"`
	// Timestamp 写入时间
	Timestamp time.Time `json:"timestamp"`
}

// Insights 从整合上下文派生的用户洞察
type Insights struct {
	// LastUpdated 更新时间
	LastUpdated time.Time `json:"last_updated"`
	// ConfidenceLevel 上下文置信度
	ConfidenceLevel float64 `json:"confidence_level"`
	// KeyContextSummary 摘要
	KeyContextSummary string `json:"key_context_summary"`
	// EmotionalState 派生情绪状态: excited, concerned, supportive, neutral
	EmotionalState string `json:"emotional_state"`
	// RelationshipStage 派生关系阶段
	RelationshipStage string `json:"relationship_stage"`
	// RecentFocusAreas 派生关注领域（最多 3 个）
	RecentFocusAreas []string `json:"recent_focus_areas"`
}

// Handoff 交接条目：为下一轮对话准备的延续信息
type Handoff struct {
	// Timestamp 写入时间
	Timestamp time.Time `json:"timestamp"`
	// Summary 摘要
	Summary string `json:"summary"`
	// Confidence 置信度
	Confidence float64 `json:"confidence"`
	// CoreLead 核心块首行
	CoreLead string `json:"core_lead"`
	// EmotionalLead 情感块首行
	EmotionalLead string `json:"emotional_lead"`
	// ProactiveLead 主动块首行
	ProactiveLead string `json:"proactive_lead"`
	// ContinuationCues 延续线索（最多 3 个）
	ContinuationCues []string `json:"continuation_cues"`
}

// TransferStore 转移缓存：按用户缓存浓缩的上下文摘要和延续线索。
//
// 存储后端通过 store.KVStore 注入；每用户的摘要条目以小时为粒度
// 分桶，超过上限时按时间序淘汰最旧的条目。同一用户的写入被
// 每用户互斥锁串行化，避免并发请求在淘汰逻辑上竞争。
type TransferStore struct {
	kv        store.KVStore
	cacheSize int
	now       func() time.Time
	metrics   otel.Metrics

	userLocks sync.Map // userID -> *sync.Mutex
}

// TransferOption 转移缓存配置选项
type TransferOption func(*TransferStore)

// WithKVStore 设置存储后端
func WithKVStore(kv store.KVStore) TransferOption {
	return func(t *TransferStore) {
		t.kv = kv
	}
}

// WithCacheSize 设置每用户摘要条目上限
func WithCacheSize(n int) TransferOption {
	return func(t *TransferStore) {
		t.cacheSize = n
	}
}

// WithTransferClock 注入时钟（用于确定性测试）
func WithTransferClock(now func() time.Time) TransferOption {
	return func(t *TransferStore) {
		t.now = now
	}
}

// WithTransferMetrics 设置指标收集器
func WithTransferMetrics(metrics otel.Metrics) TransferOption {
	return func(t *TransferStore) {
		t.metrics = metrics
	}
}

// NewTransferStore 创建转移缓存
func NewTransferStore(opts ...TransferOption) *TransferStore {
	t := &TransferStore{
		kv:        store.NewMemoryKVStore(),
		cacheSize: 100,
		now:       time.Now,
		metrics:   otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// lockUser 获取用户级互斥锁
func (t *TransferStore) lockUser(userID string) *sync.Mutex {
	mu, _ := t.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// StoreSummary 写入本轮摘要并淘汰超限的旧条目
func (t *TransferStore) StoreSummary(ctx context.Context, userID, summary, message string) error {
	mu := t.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	now := t.now()
	entry := SummaryEntry{
		Summary:     summary,
		LastMessage: message,
		Timestamp:   now,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(summaryKeyFormat, userID, now.Format(hourBucketLayout))
	if err := t.kv.Set(ctx, key, value, 0); err != nil {
		return err
	}
	t.metrics.Counter(otel.MetricTransferWrites).Add(ctx, 1,
		otel.NewAttr(otel.AttrUserID, userID))

	return t.evictLocked(ctx, userID)
}

// evictLocked 淘汰超过上限的最旧摘要键（须持有用户锁）。
// 小时桶键按字典序即时间序，直接删去头部超限部分。
func (t *TransferStore) evictLocked(ctx context.Context, userID string) error {
	prefix := fmt.Sprintf("context_summary:%s:", userID)
	keys, err := t.kv.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) <= t.cacheSize {
		return nil
	}

	for _, key := range keys[:len(keys)-t.cacheSize] {
		if err := t.kv.Delete(ctx, key); err != nil {
			return err
		}
		t.metrics.Counter(otel.MetricTransferEvictions).Add(ctx, 1,
			otel.NewAttr(otel.AttrUserID, userID))
	}
	return nil
}

// UpdateInsights 从整合上下文派生洞察并覆盖写入
func (t *TransferStore) UpdateInsights(ctx context.Context, userID string, integrated IntegratedContext) error {
	mu := t.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	insights := Insights{
		LastUpdated:       t.now(),
		ConfidenceLevel:   integrated.ConfidenceScore,
		KeyContextSummary: integrated.ContextSummary,
		EmotionalState:    deriveEmotionalState(integrated.EmotionalContext),
		RelationshipStage: deriveRelationshipStage(integrated.EmotionalContext),
		RecentFocusAreas:  deriveFocusAreas(integrated),
	}
	value, err := json.Marshal(insights)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, fmt.Sprintf(insightsKeyFormat, userID), value, 0)
}

// PrepareHandoff 写入下一轮对话的交接条目
func (t *TransferStore) PrepareHandoff(ctx context.Context, userID string, integrated IntegratedContext) error {
	mu := t.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	handoff := Handoff{
		Timestamp:        t.now(),
		Summary:          integrated.ContextSummary,
		Confidence:       integrated.ConfidenceScore,
		CoreLead:         firstLine(integrated.CoreContext),
		EmotionalLead:    firstLine(integrated.EmotionalContext),
		ProactiveLead:    firstLine(integrated.ProactiveContext),
		ContinuationCues: deriveContinuationCues(integrated),
	}
	value, err := json.Marshal(handoff)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, fmt.Sprintf(handoffKeyFormat, userID), value, 0)
}

// GetInsights 读取用户洞察；不存在时返回 nil
func (t *TransferStore) GetInsights(ctx context.Context, userID string) (*Insights, error) {
	value, err := t.kv.Get(ctx, fmt.Sprintf(insightsKeyFormat, userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var insights Insights
	if err := json.Unmarshal(value, &insights); err != nil {
		return nil, err
	}
	return &insights, nil
}

// GetHandoff 读取交接条目；不存在时返回 nil
func (t *TransferStore) GetHandoff(ctx context.Context, userID string) (*Handoff, error) {
	value, err := t.kv.Get(ctx, fmt.Sprintf(handoffKeyFormat, userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var handoff Handoff
	if err := json.Unmarshal(value, &handoff); err != nil {
		return nil, err
	}
	return &handoff, nil
}

// SummaryCount 返回用户当前持有的摘要条目数
func (t *TransferStore) SummaryCount(ctx context.Context, userID string) (int, error) {
	keys, err := t.kv.Keys(ctx, fmt.Sprintf("context_summary:%s:", userID))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// firstLine 返回文本首行
func firstLine(text string) string {
	if text == "" {
		return ""
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// deriveEmotionalState 从情感块关键词派生情绪状态
func deriveEmotionalState(emotional string) string {
	lower := strings.ToLower(emotional)
	switch {
	case strings.Contains(lower, "excited"):
		return "excited"
	case strings.Contains(lower, "concern") || strings.Contains(lower, "worri") ||
		strings.Contains(lower, "anxious") || strings.Contains(lower, "stress"):
		return "concerned"
	case strings.Contains(lower, "support"):
		return "supportive"
	default:
		return "neutral"
	}
}

// deriveRelationshipStage 从情感块关键词派生关系阶段
func deriveRelationshipStage(emotional string) string {
	lower := strings.ToLower(emotional)
	switch {
	case strings.Contains(lower, "new"):
		return "new_user"
	case strings.Contains(lower, "trust"):
		return "trusted_companion"
	case strings.Contains(lower, "friend"):
		return "close_friend"
	default:
		return "getting_to_know"
	}
}

// focusBuckets 关注领域关键词桶
var focusBuckets = []struct {
	area     string
	keywords []string
}{
	{"travel", []string{"trip", "travel", "route", "camping", "destination"}},
	{"budget", []string{"budget", "cost", "price", "expense", "saving"}},
	{"technical", []string{"vehicle", "rv", "engine", "maintenance", "repair"}},
	{"social", []string{"friend", "group", "community", "meet"}},
	{"planning", []string{"plan", "schedule", "itinerary", "prepare"}},
}

// deriveFocusAreas 从四个文本块派生关注领域（最多 3 个）
func deriveFocusAreas(integrated IntegratedContext) []string {
	combined := strings.ToLower(strings.Join([]string{
		integrated.CoreContext,
		integrated.SupportingContext,
		integrated.EmotionalContext,
		integrated.ProactiveContext,
	}, " "))

	var areas []string
	for _, bucket := range focusBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(combined, kw) {
				areas = append(areas, bucket.area)
				break
			}
		}
		if len(areas) == 3 {
			break
		}
	}
	return areas
}

// deriveContinuationCues 扫描主动块和情感块提取延续线索（最多 3 个）
func deriveContinuationCues(integrated IntegratedContext) []string {
	var cues []string
	add := func(cue string) {
		if len(cues) < 3 {
			cues = append(cues, cue)
		}
	}

	for _, line := range strings.Split(integrated.ProactiveContext, "\n") {
		if strings.Contains(strings.ToLower(line), "opportunity") {
			add(strings.TrimSpace(line))
		}
	}
	for _, line := range strings.Split(integrated.EmotionalContext, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "support") || strings.Contains(lower, "emotion") {
			add(strings.TrimSpace(line))
		}
	}
	return cues
}
