// Package memory 提供交互记忆系统：存储用户与助手的历史交互，
// 支持语义检索和实体知识图谱挖掘。
//
// 包含两部分能力：
//
//   - InteractionStore：记录对话轮次并按语义相似度检索，
//     优先使用外部嵌入服务，不可用时回退到本地 TF-IDF。
//   - EntityMiner：从对话文本中挖掘旅行领域实体及其共现关系，
//     写入 store.GraphStore。
package memory

import (
	"context"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/embedding"
)

// Record 一条交互记录
type Record struct {
	// ID 唯一标识
	ID string `json:"id"`
	// UserID 所属用户
	UserID string `json:"user_id"`
	// Content 记录内容（用户消息与助手回复的合并文本）
	Content string `json:"content"`
	// Vector 嵌入向量
	Vector []float32 `json:"-"`
	// Timestamp 记录时间
	Timestamp time.Time `json:"timestamp"`
}

// Store 交互记忆存储接口
type Store interface {
	// RecordTurn 记录一轮对话（用户消息 + 助手回复）
	RecordTurn(ctx context.Context, userID, userMessage, pamResponse string) error

	// Search 按语义相似度检索用户的历史交互
	Search(ctx context.Context, userID, query string, topK int) ([]embedding.Match, error)

	// Size 返回指定用户的记录数量
	Size(userID string) int

	// Clear 清空指定用户的所有记录
	Clear(ctx context.Context, userID string) error
}
