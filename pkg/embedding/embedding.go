// Package embedding 提供文本嵌入和向量检索能力。
//
// 本包封装了外部嵌入 API（OpenAI）和本地 TF-IDF 降级方案，
// 为历史上下文的语义检索提供统一接口：
//
//   - Embed 将文本转换为定长浮点向量
//   - CosineSimilarity 计算两个向量的余弦相似度
//   - TopK 在候选集合中执行 top-k 最近邻搜索
package embedding

import (
	"context"
	"math"
	"sort"
)

// Embedder 文本嵌入接口
type Embedder interface {
	// Embed 将文本列表转换为向量列表
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Candidate 最近邻搜索的候选项
type Candidate struct {
	// ID 候选标识
	ID string
	// Content 候选文本
	Content string
	// Vector 候选向量
	Vector []float32
	// Metadata 元数据
	Metadata map[string]interface{}
}

// Match 最近邻搜索结果
type Match struct {
	// ID 候选标识
	ID string `json:"id"`
	// Content 候选文本
	Content string `json:"content"`
	// Score 相似度分数 (0-1，越高越相似)
	Score float32 `json:"score"`
	// Metadata 元数据
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CosineSimilarity 计算两个向量的余弦相似度
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// TopK 在候选集合中搜索与查询向量最相似的 k 个结果。
//
// 结果按相似度降序排列；k <= 0 时返回全部候选。
func TopK(query []float32, candidates []Candidate, k int) []Match {
	if len(query) == 0 || len(candidates) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Vector == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       c.ID,
			Content:  c.Content,
			Score:    CosineSimilarity(query, c.Vector),
			Metadata: c.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k > 0 && k < len(matches) {
		return matches[:k]
	}
	return matches
}
