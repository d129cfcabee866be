package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKVStore SQLite 键值存储
//
// 基于 SQLite 的持久化键值存储，用于让上下文转移缓存
// 在进程重启后仍然可用。
type SQLiteKVStore struct {
	db *sql.DB
}

// NewSQLiteKVStore 创建 SQLite 键值存储
func NewSQLiteKVStore(dbPath string) (*SQLiteKVStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteKVStore{db: db}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

// initSchema 初始化表结构
func (s *SQLiteKVStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB,
		expires_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv_entries(expires_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// Get 获取键对应的值
func (s *SQLiteKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidInput
	}

	query := `SELECT value, expires_at FROM kv_entries WHERE key = ?`

	var value []byte
	var expiresAt int64

	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt > 0 && time.Now().UnixMilli() > expiresAt {
		return nil, ErrNotFound
	}

	return value, nil
}

// Set 存储键值对
func (s *SQLiteKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidInput
	}

	now := time.Now().UnixMilli()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now + ttl.Milliseconds()
	}

	query := `
	INSERT INTO kv_entries (key, value, expires_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, key, value, expiresAt, now)
	return err
}

// Delete 删除键
func (s *SQLiteKVStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	return err
}

// Keys 返回具有指定前缀的所有键（升序）
func (s *SQLiteKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `
	SELECT key FROM kv_entries
	WHERE key LIKE ? ESCAPE '\' AND (expires_at = 0 OR expires_at > ?)
	ORDER BY key ASC
	`

	rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%", time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// escapeLike 转义 LIKE 模式中的通配符和转义符
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Purge 删除所有过期条目
func (s *SQLiteKVStore) Purge(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at > 0 AND expires_at <= ?`,
		time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close 关闭存储
func (s *SQLiteKVStore) Close() error {
	return s.db.Close()
}

// 编译时接口检查
var _ KVStore = (*SQLiteKVStore)(nil)
