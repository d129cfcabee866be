package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryKVStore 内存键值存储
//
// 进程内实现，适合测试与单实例部署；多实例部署应使用 SQLite 等
// 持久化后端，否则缓存内容无法跨实例共享。
type MemoryKVStore struct {
	entries map[string]kvEntry
	mu      sync.RWMutex
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time // 零值表示不过期
}

// NewMemoryKVStore 创建内存键值存储
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		entries: make(map[string]kvEntry),
	}
}

// Get 获取键对应的值
func (s *MemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidInput
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || entry.expired() {
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set 存储键值对
func (s *MemoryKVStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidInput
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := kvEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	return nil
}

// Delete 删除键
func (s *MemoryKVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Keys 返回具有指定前缀的所有键（升序）
func (s *MemoryKVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0)
	for key, entry := range s.entries {
		if strings.HasPrefix(key, prefix) && !entry.expired() {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Close 关闭存储
func (s *MemoryKVStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]kvEntry)
	s.mu.Unlock()
	return nil
}

// Size 返回当前条目数（含未清理的过期条目）
func (s *MemoryKVStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (e kvEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// MemoryGraphStore 内存图存储
type MemoryGraphStore struct {
	entities  map[string]*Entity   // key: userID + "\x00" + name
	relations map[string]*Relation // key: userID + "\x00" + from + "\x00" + to + "\x00" + type
	mu        sync.RWMutex
}

// NewMemoryGraphStore 创建内存图存储
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		entities:  make(map[string]*Entity),
		relations: make(map[string]*Relation),
	}
}

// UpsertEntity 写入或更新实体
func (s *MemoryGraphStore) UpsertEntity(_ context.Context, entity Entity) error {
	if entity.Name == "" || entity.UserID == "" {
		return ErrInvalidInput
	}

	key := entity.UserID + "\x00" + entity.Name

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entities[key]; ok {
		existing.Mentions += entity.Mentions
		if entity.LastSeen.After(existing.LastSeen) {
			existing.LastSeen = entity.LastSeen
		}
		if entity.Type != "" {
			existing.Type = entity.Type
		}
		return nil
	}

	stored := entity
	s.entities[key] = &stored
	return nil
}

// UpsertRelation 写入或更新关系
func (s *MemoryGraphStore) UpsertRelation(_ context.Context, relation Relation) error {
	if relation.From == "" || relation.To == "" || relation.UserID == "" {
		return ErrInvalidInput
	}

	key := relation.UserID + "\x00" + relation.From + "\x00" + relation.To + "\x00" + relation.Type

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.relations[key]; ok {
		existing.Weight += relation.Weight
		return nil
	}

	stored := relation
	s.relations[key] = &stored
	return nil
}

// GetEntities 获取用户的实体列表
func (s *MemoryGraphStore) GetEntities(_ context.Context, userID string, limit int) ([]Entity, error) {
	s.mu.RLock()
	result := make([]Entity, 0)
	for _, entity := range s.entities {
		if entity.UserID == userID {
			result = append(result, *entity)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Mentions != result[j].Mentions {
			return result[i].Mentions > result[j].Mentions
		}
		return result[i].Name < result[j].Name
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetRelated 获取与指定实体相关的实体名称
func (s *MemoryGraphStore) GetRelated(_ context.Context, userID, name string, limit int) ([]string, error) {
	type related struct {
		name   string
		weight int
	}

	s.mu.RLock()
	found := make([]related, 0)
	for _, rel := range s.relations {
		if rel.UserID != userID {
			continue
		}
		if rel.From == name {
			found = append(found, related{rel.To, rel.Weight})
		} else if rel.To == name {
			found = append(found, related{rel.From, rel.Weight})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].weight != found[j].weight {
			return found[i].weight > found[j].weight
		}
		return found[i].name < found[j].name
	})

	names := make([]string, 0, len(found))
	for _, r := range found {
		names = append(names, r.name)
	}

	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// Close 关闭存储
func (s *MemoryGraphStore) Close() error {
	s.mu.Lock()
	s.entities = make(map[string]*Entity)
	s.relations = make(map[string]*Relation)
	s.mu.Unlock()
	return nil
}

// 编译时接口检查
var _ KVStore = (*MemoryKVStore)(nil)
var _ GraphStore = (*MemoryGraphStore)(nil)
