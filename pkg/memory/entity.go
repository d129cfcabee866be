package memory

import (
	"context"
	"sort"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/embedding"
	"github.com/wheelswins/pam-context-go/pkg/memory/store"
)

// entityLexicon 旅行领域实体词典：词 -> 实体类型
//
// 基于关键词匹配的轻量实体识别。生产环境可替换为 NER 模型，
// 但对旅行助手的高频词汇，词典方式已有不错的召回。
var entityLexicon = map[string]string{
	// 车辆
	"rv":          "vehicle",
	"camper":      "vehicle",
	"van":         "vehicle",
	"trailer":     "vehicle",
	"motorhome":   "vehicle",
	"truck":       "vehicle",
	"engine":      "vehicle",
	"tire":        "vehicle",
	"tires":       "vehicle",
	"battery":     "vehicle",
	"solar":       "vehicle",
	"generator":   "vehicle",
	"propane":     "vehicle",
	"maintenance": "vehicle",

	// 地点
	"campground":  "place",
	"campsite":    "place",
	"park":        "place",
	"mountain":    "place",
	"mountains":   "place",
	"lake":        "place",
	"beach":       "place",
	"desert":      "place",
	"forest":      "place",
	"coast":       "place",
	"yellowstone": "place",
	"yosemite":    "place",
	"moab":        "place",

	// 活动
	"camping":     "activity",
	"hiking":      "activity",
	"boondocking": "activity",
	"fishing":     "activity",
	"kayaking":    "activity",
	"biking":      "activity",
	"trip":        "activity",
	"travel":      "activity",
	"route":       "activity",
	"roadtrip":    "activity",

	// 财务
	"budget":  "finance",
	"cost":    "finance",
	"gas":     "finance",
	"fuel":    "finance",
	"price":   "finance",
	"fee":     "finance",
	"fees":    "finance",
	"savings": "finance",
}

// EntityMiner 从对话文本中挖掘实体并写入图存储
type EntityMiner struct {
	graph store.GraphStore
}

// NewEntityMiner 创建实体挖掘器
func NewEntityMiner(graph store.GraphStore) *EntityMiner {
	return &EntityMiner{graph: graph}
}

// Mine 从文本中识别实体，写入图存储并记录同句共现关系
func (m *EntityMiner) Mine(ctx context.Context, userID, text string) error {
	if m.graph == nil || text == "" {
		return nil
	}

	found := MineEntities(text)
	if len(found) == 0 {
		return nil
	}

	now := time.Now()
	names := make([]string, 0, len(found))
	for _, e := range found {
		names = append(names, e.Name)
		entity := store.Entity{
			Name:     e.Name,
			Type:     e.Type,
			UserID:   userID,
			Mentions: e.Mentions,
			LastSeen: now,
		}
		if err := m.graph.UpsertEntity(ctx, entity); err != nil {
			return err
		}
	}

	// 同一文本中出现的实体视为共现
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			relation := store.Relation{
				UserID: userID,
				From:   names[i],
				To:     names[j],
				Type:   "co_mentioned",
				Weight: 1,
			}
			if err := m.graph.UpsertRelation(ctx, relation); err != nil {
				return err
			}
		}
	}

	return nil
}

// MinedEntity 文本中识别出的实体
type MinedEntity struct {
	// Name 实体名称（小写归一化）
	Name string
	// Type 实体类型
	Type string
	// Mentions 在文本中出现的次数
	Mentions int
}

// MineEntities 从文本中识别词典实体，按名称字典序返回
func MineEntities(text string) []MinedEntity {
	words := embedding.Tokenize(text)
	counts := make(map[string]int)
	for _, w := range words {
		if _, ok := entityLexicon[w]; ok {
			counts[w]++
		}
	}

	entities := make([]MinedEntity, 0, len(counts))
	for name, n := range counts {
		entities = append(entities, MinedEntity{
			Name:     name,
			Type:     entityLexicon[name],
			Mentions: n,
		})
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Name < entities[j].Name
	})
	return entities
}
