package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wheelswins/pam-context-go/pkg/embedding"
	"github.com/wheelswins/pam-context-go/pkg/otel"
)

// InteractionStore 交互记忆存储实现
//
// 内存存储，按用户隔离。每条记录在写入时生成嵌入向量；
// 嵌入服务不可用时回退到本地 TF-IDF，TF-IDF 也无法匹配时
// 回退到关键词重叠检索。
type InteractionStore struct {
	embedder embedding.Embedder
	miner    *EntityMiner
	logger   otel.Logger
	metrics  otel.Metrics

	records map[string][]Record // userID -> records
	mu      sync.RWMutex

	tfidf   *embedding.TFIDFVectorizer
	tfidfMu sync.Mutex
}

var _ Store = (*InteractionStore)(nil)

// InteractionOption 交互存储配置选项
type InteractionOption func(*InteractionStore)

// WithEmbedder 设置嵌入服务
func WithEmbedder(embedder embedding.Embedder) InteractionOption {
	return func(s *InteractionStore) {
		s.embedder = embedder
	}
}

// WithEntityMiner 设置实体挖掘器，记录对话时同步更新知识图谱
func WithEntityMiner(miner *EntityMiner) InteractionOption {
	return func(s *InteractionStore) {
		s.miner = miner
	}
}

// WithLogger 设置日志器
func WithLogger(logger otel.Logger) InteractionOption {
	return func(s *InteractionStore) {
		s.logger = logger
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(metrics otel.Metrics) InteractionOption {
	return func(s *InteractionStore) {
		s.metrics = metrics
	}
}

// NewInteractionStore 创建交互记忆存储
func NewInteractionStore(opts ...InteractionOption) *InteractionStore {
	s := &InteractionStore{
		records: make(map[string][]Record),
		tfidf:   embedding.NewTFIDFVectorizer(),
		logger:  otel.NewNoopLogger(),
		metrics: otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordTurn 记录一轮对话
func (s *InteractionStore) RecordTurn(ctx context.Context, userID, userMessage, pamResponse string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	content := strings.TrimSpace(userMessage + " " + pamResponse)
	if content == "" {
		return ErrEmptyContent
	}

	record := Record{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		Timestamp: time.Now(),
	}

	// 生成嵌入向量；失败时仅记录日志，不阻断写入
	if s.embedder != nil {
		vectors, err := s.embedder.Embed(ctx, []string{content})
		if err != nil {
			s.logger.WithContext(ctx).Warn("embedding failed, record stored without vector",
				"user_id", userID, "error", err)
			s.metrics.Counter(otel.MetricEmbeddingErrors).Add(ctx, 1)
		} else if len(vectors) == 1 {
			record.Vector = vectors[0]
		}
	}

	s.mu.Lock()
	s.records[userID] = append(s.records[userID], record)
	size := len(s.records[userID])
	s.mu.Unlock()

	s.metrics.Gauge(otel.MetricMemoryRecords).Set(ctx, float64(size), otel.NewAttr(otel.AttrUserID, userID))

	// 挖掘实体到知识图谱；失败不阻断写入
	if s.miner != nil {
		if err := s.miner.Mine(ctx, userID, content); err != nil {
			s.logger.WithContext(ctx).Warn("entity mining failed",
				"user_id", userID, "error", err)
		}
	}

	return nil
}

// Search 按语义相似度检索用户的历史交互
//
// 检索优先级：嵌入向量 > TF-IDF > 关键词重叠。
func (s *InteractionStore) Search(ctx context.Context, userID, query string, topK int) ([]embedding.Match, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	s.mu.RLock()
	records := make([]Record, len(s.records[userID]))
	copy(records, s.records[userID])
	s.mu.RUnlock()

	if len(records) == 0 {
		return nil, nil
	}

	s.metrics.Counter(otel.MetricMemorySearches).Add(ctx, 1, otel.NewAttr(otel.AttrUserID, userID))

	// 优先使用嵌入向量检索
	if s.embedder != nil {
		matches, err := s.searchByVector(ctx, query, records, topK)
		if err == nil && len(matches) > 0 {
			return matches, nil
		}
		if err != nil {
			s.logger.WithContext(ctx).Warn("vector search failed, falling back to tf-idf",
				"user_id", userID, "error", err)
		}
	}

	// TF-IDF 回退
	if matches := s.searchByTFIDF(query, records, topK); len(matches) > 0 {
		return matches, nil
	}

	// 关键词重叠兜底
	return searchByKeywords(query, records, topK), nil
}

func (s *InteractionStore) searchByVector(ctx context.Context, query string, records []Record, topK int) ([]embedding.Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, nil
	}

	candidates := make([]embedding.Candidate, 0, len(records))
	for _, r := range records {
		if r.Vector == nil {
			continue
		}
		candidates = append(candidates, embedding.Candidate{
			ID:      r.ID,
			Content: r.Content,
			Vector:  r.Vector,
			Metadata: map[string]interface{}{
				"timestamp": r.Timestamp,
			},
		})
	}

	return embedding.TopK(vectors[0], candidates, topK), nil
}

// searchByTFIDF 在查询时对该用户的记录训练 TF-IDF 词汇表。
// 词汇表按用户即时重建，避免用户之间互相污染向量空间。
func (s *InteractionStore) searchByTFIDF(query string, records []Record, topK int) []embedding.Match {
	documents := make([]string, len(records))
	for i, r := range records {
		documents[i] = r.Content
	}

	s.tfidfMu.Lock()
	defer s.tfidfMu.Unlock()
	s.tfidf.Fit(documents)

	queryVec := s.tfidf.Transform(query)
	if queryVec == nil {
		return nil
	}

	candidates := make([]embedding.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, embedding.Candidate{
			ID:      r.ID,
			Content: r.Content,
			Vector:  s.tfidf.Transform(r.Content),
			Metadata: map[string]interface{}{
				"timestamp": r.Timestamp,
			},
		})
	}

	matches := embedding.TopK(queryVec, candidates, topK)
	filtered := matches[:0]
	for _, m := range matches {
		if m.Score > 0 {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// searchByKeywords 关键词重叠检索：分数为查询词命中比例
func searchByKeywords(query string, records []Record, topK int) []embedding.Match {
	queryWords := embedding.Tokenize(query)
	if len(queryWords) == 0 {
		return nil
	}

	var matches []embedding.Match
	for _, r := range records {
		contentWords := make(map[string]bool)
		for _, w := range embedding.Tokenize(r.Content) {
			contentWords[w] = true
		}

		hits := 0
		for _, w := range queryWords {
			if contentWords[w] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		matches = append(matches, embedding.Match{
			ID:      r.ID,
			Content: r.Content,
			Score:   float32(hits) / float32(len(queryWords)),
			Metadata: map[string]interface{}{
				"timestamp": r.Timestamp,
			},
		})
	}

	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && topK < len(matches) {
		return matches[:topK]
	}
	return matches
}

// Size 返回指定用户的记录数量
func (s *InteractionStore) Size(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[userID])
}

// Clear 清空指定用户的所有记录
func (s *InteractionStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}
