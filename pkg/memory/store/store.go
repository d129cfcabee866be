// Package store 提供记忆系统的存储后端。
//
// 包含两类存储接口：
//
//   - KVStore：键值存储，用于上下文转移缓存的持久化，
//     默认实现为内存存储，生产环境建议使用 SQLite。
//   - GraphStore：图存储，用于用户交互知识图谱，
//     默认实现为内存存储，生产环境建议使用 Neo4j。
package store

import (
	"context"
	"time"
)

// KVStore 键值存储接口
type KVStore interface {
	// Get 获取键对应的值；键不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 存储键值对；ttl 为 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除键；键不存在不报错
	Delete(ctx context.Context, key string) error

	// Keys 返回具有指定前缀的所有键，按字典序升序排列
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close 关闭存储
	Close() error
}

// Entity 交互图谱中的实体节点
type Entity struct {
	// Name 实体名称（小写归一化）
	Name string `json:"name"`
	// Type 实体类型（vehicle, place, activity, finance 等）
	Type string `json:"type"`
	// UserID 所属用户
	UserID string `json:"user_id"`
	// Mentions 提及次数
	Mentions int `json:"mentions"`
	// LastSeen 最近一次提及时间
	LastSeen time.Time `json:"last_seen"`
}

// Relation 实体间的关系边
type Relation struct {
	// UserID 所属用户
	UserID string `json:"user_id"`
	// From 起点实体名称
	From string `json:"from"`
	// To 终点实体名称
	To string `json:"to"`
	// Type 关系类型（目前仅 co_mentioned）
	Type string `json:"type"`
	// Weight 共现次数
	Weight int `json:"weight"`
}

// GraphStore 图存储接口
type GraphStore interface {
	// UpsertEntity 写入或更新实体（Mentions 累加，LastSeen 取较新值）
	UpsertEntity(ctx context.Context, entity Entity) error

	// UpsertRelation 写入或更新关系（Weight 累加）
	UpsertRelation(ctx context.Context, relation Relation) error

	// GetEntities 获取用户的实体列表，按提及次数降序，limit <= 0 返回全部
	GetEntities(ctx context.Context, userID string, limit int) ([]Entity, error)

	// GetRelated 获取与指定实体相关的实体名称，按关系权重降序
	GetRelated(ctx context.Context, userID, name string, limit int) ([]string, error)

	// Close 关闭存储
	Close() error
}
