package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig Neo4j 连接配置
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
}

// Neo4jGraphStore 基于 Neo4j 的图存储实现
type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

// NewNeo4jGraphStore 创建 Neo4j 图存储
func NewNeo4jGraphStore(config Neo4jConfig) (*Neo4jGraphStore, error) {
	if config.URI == "" {
		config.URI = "bolt://localhost:7687"
	}

	auth := neo4j.NoAuth()
	if config.Username != "" && config.Password != "" {
		auth = neo4j.BasicAuth(config.Username, config.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	// 验证连接
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &Neo4jGraphStore{driver: driver}

	// 创建索引
	if err := store.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

// createIndexes 创建索引
func (s *Neo4jGraphStore) createIndexes(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	indexes := []string{
		"CREATE INDEX entity_user IF NOT EXISTS FOR (e:Entity) ON (e.user_id)",
		"CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)",
	}

	for _, idx := range indexes {
		_, err := session.Run(ctx, idx, nil)
		if err != nil {
			// 忽略索引已存在的错误
			if !strings.Contains(err.Error(), "already exists") {
				return err
			}
		}
	}

	return nil
}

// UpsertEntity 写入或更新实体节点
func (s *Neo4jGraphStore) UpsertEntity(ctx context.Context, entity Entity) error {
	if entity.Name == "" || entity.UserID == "" {
		return ErrInvalidInput
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	mentions := entity.Mentions
	if mentions <= 0 {
		mentions = 1
	}
	lastSeen := entity.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}

	query := `
	MERGE (e:Entity {user_id: $user_id, name: $name})
	ON CREATE SET
		e.type = $type,
		e.mentions = $mentions,
		e.last_seen = $last_seen
	ON MATCH SET
		e.type = $type,
		e.mentions = e.mentions + $mentions,
		e.last_seen = CASE WHEN $last_seen > e.last_seen THEN $last_seen ELSE e.last_seen END
	`

	params := map[string]interface{}{
		"user_id":   entity.UserID,
		"name":      entity.Name,
		"type":      entity.Type,
		"mentions":  mentions,
		"last_seen": lastSeen.UnixMilli(),
	}

	_, err := session.Run(ctx, query, params)
	return err
}

// UpsertRelation 写入或更新关系边
func (s *Neo4jGraphStore) UpsertRelation(ctx context.Context, relation Relation) error {
	if relation.From == "" || relation.To == "" || relation.UserID == "" {
		return ErrInvalidInput
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	weight := relation.Weight
	if weight <= 0 {
		weight = 1
	}

	query := `
	MERGE (a:Entity {user_id: $user_id, name: $from})
	MERGE (b:Entity {user_id: $user_id, name: $to})
	MERGE (a)-[r:RELATED {type: $type}]->(b)
	ON CREATE SET r.weight = $weight
	ON MATCH SET r.weight = r.weight + $weight
	`

	params := map[string]interface{}{
		"user_id": relation.UserID,
		"from":    relation.From,
		"to":      relation.To,
		"type":    relation.Type,
		"weight":  weight,
	}

	_, err := session.Run(ctx, query, params)
	return err
}

// GetEntities 获取用户的实体列表，按提及次数降序
func (s *Neo4jGraphStore) GetEntities(ctx context.Context, userID string, limit int) ([]Entity, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := `
	MATCH (e:Entity {user_id: $user_id})
	RETURN e ORDER BY e.mentions DESC, e.name ASC
	`
	params := map[string]interface{}{"user_id": userID}
	if limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = limit
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var entities []Entity
	for result.Next(ctx) {
		record := result.Record()
		nodeVal, ok := record.Get("e")
		if !ok {
			continue
		}
		node, ok := nodeVal.(neo4j.Node)
		if !ok {
			continue
		}
		entities = append(entities, nodeToEntity(node))
	}

	return entities, result.Err()
}

// GetRelated 获取与指定实体相关的实体名称，按关系权重降序
func (s *Neo4jGraphStore) GetRelated(ctx context.Context, userID, name string, limit int) ([]string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	query := `
	MATCH (a:Entity {user_id: $user_id, name: $name})-[r:RELATED]-(b:Entity)
	RETURN b.name AS name, r.weight AS weight
	ORDER BY weight DESC, name ASC
	`
	params := map[string]interface{}{"user_id": userID, "name": name}
	if limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = limit
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var names []string
	for result.Next(ctx) {
		record := result.Record()
		nameVal, ok := record.Get("name")
		if !ok {
			continue
		}
		if n, ok := nameVal.(string); ok {
			names = append(names, n)
		}
	}

	return names, result.Err()
}

// Close 关闭驱动
func (s *Neo4jGraphStore) Close() error {
	return s.driver.Close(context.Background())
}

// nodeToEntity 将 Neo4j 节点转换为 Entity
func nodeToEntity(node neo4j.Node) Entity {
	entity := Entity{}
	if v, ok := node.Props["user_id"].(string); ok {
		entity.UserID = v
	}
	if v, ok := node.Props["name"].(string); ok {
		entity.Name = v
	}
	if v, ok := node.Props["type"].(string); ok {
		entity.Type = v
	}
	if v, ok := node.Props["mentions"].(int64); ok {
		entity.Mentions = int(v)
	}
	if v, ok := node.Props["last_seen"].(int64); ok {
		entity.LastSeen = time.UnixMilli(v)
	}
	return entity
}
