package context

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/core/message"
	"github.com/wheelswins/pam-context-go/pkg/embedding"
)

func TestRetrieveEmptyRawContext(t *testing.T) {
	e := NewExtractor()
	snippets := e.Retrieve(context.Background(), "user-1", "hello there", RawContext{})
	if len(snippets) != 0 {
		t.Errorf("expected no snippets for empty raw context, got %d", len(snippets))
	}
}

func TestProfileExtraction(t *testing.T) {
	e := &ProfileExtractor{}
	raw := RawContext{
		UserProfile: &UserProfile{TravelPreferences: "likes camping"},
	}

	snippets, err := e.Extract(context.Background(), "user-1", "plan a camping trip", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(snippets))
	}

	s := snippets[0]
	if s.Source != SourceProfile {
		t.Errorf("expected source profile, got %s", s.Source)
	}
	if s.Category != CategoryTravel {
		t.Errorf("expected category travel, got %s", s.Category)
	}
	// overlap 1/4=0.25, profile weight 0.9, travel boost 1.2
	expected := 0.25 * 0.9 * 1.2
	if math.Abs(s.RelevanceScore-expected) > 1e-9 {
		t.Errorf("expected score %v, got %v", expected, s.RelevanceScore)
	}
}

func TestProfileExtractionAllFields(t *testing.T) {
	e := &ProfileExtractor{}
	raw := RawContext{
		UserProfile: &UserProfile{
			TravelPreferences: "scenic routes",
			VehicleInfo:       "2019 camper van",
			BudgetPreferences: "moderate budget",
		},
	}

	snippets, err := e.Extract(context.Background(), "user-1", "hello", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(snippets))
	}

	categories := []Category{CategoryTravel, CategoryTechnical, CategoryPersonal}
	for i, want := range categories {
		if snippets[i].Category != want {
			t.Errorf("snippet %d: expected category %s, got %s", i, want, snippets[i].Category)
		}
	}
}

func TestMemoryExtractionRecency(t *testing.T) {
	e := &MemoryExtractor{}
	raw := RawContext{
		RecentMemory: &RecentMemory{
			ConversationHistory: []message.Turn{
				{UserMessage: "plan my trip"},
				{UserMessage: "plan my trip"},
			},
		},
	}

	snippets, err := e.Extract(context.Background(), "user-1", "plan my trip", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}

	// identical content, so the newer turn must score higher via recency weight
	if snippets[0].RelevanceScore <= snippets[1].RelevanceScore {
		t.Errorf("expected recency decay: %v then %v",
			snippets[0].RelevanceScore, snippets[1].RelevanceScore)
	}
	ratio := snippets[1].RelevanceScore / snippets[0].RelevanceScore
	if math.Abs(ratio-0.9) > 1e-9 {
		t.Errorf("expected second turn weighted 0.9 of first, got ratio %v", ratio)
	}
}

func TestMemoryExtractionCapsAtTenTurns(t *testing.T) {
	history := make([]message.Turn, 15)
	for i := range history {
		history[i] = message.Turn{UserMessage: "some message"}
	}

	e := &MemoryExtractor{}
	snippets, err := e.Extract(context.Background(), "user-1", "hello", RawContext{
		RecentMemory: &RecentMemory{ConversationHistory: history},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 10 {
		t.Errorf("expected 10 snippets, got %d", len(snippets))
	}
}

func TestEmotionalExtraction(t *testing.T) {
	e := &EmotionalExtractor{}
	raw := RawContext{
		EmotionalContext: &EmotionalContext{
			CurrentEmotion:    "excited",
			RelationshipStage: "trusted companion",
			SupportIndicators: []string{"needs reassurance about route safety"},
		},
	}

	snippets, err := e.Extract(context.Background(), "user-1", "is the route safe", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(snippets))
	}
	if snippets[1].Category != CategoryRelationship {
		t.Errorf("expected relationship category, got %s", snippets[1].Category)
	}
}

func TestProactiveExtraction(t *testing.T) {
	e := &ProactiveExtractor{}
	raw := RawContext{
		ProactiveItems: &ProactiveItems{
			Opportunities:    []string{"campground discount nearby"},
			SuggestedActions: []string{"check tire pressure"},
		},
	}

	snippets, err := e.Extract(context.Background(), "user-1", "hello", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}
	for _, s := range snippets {
		if s.Category != CategoryProactive {
			t.Errorf("expected proactive category, got %s", s.Category)
		}
	}
	if !strings.HasPrefix(snippets[0].Content, "Opportunity: ") {
		t.Errorf("unexpected content: %q", snippets[0].Content)
	}
}

func TestHistoricalTemplatesRequireTravelKeyword(t *testing.T) {
	e := NewHistoricalExtractor(nil)

	snippets, err := e.Extract(context.Background(), "user-1", "how are you", RawContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 0 {
		t.Errorf("expected no historical snippets without travel keyword, got %d", len(snippets))
	}

	snippets, err = e.Extract(context.Background(), "user-1", "plan a camping trip", RawContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 2 {
		t.Errorf("expected 2 template snippets, got %d", len(snippets))
	}
}

type stubSearcher struct {
	matches []embedding.Match
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _, _ string, _ int) ([]embedding.Match, error) {
	return s.matches, s.err
}

func TestHistoricalSearcherResults(t *testing.T) {
	searcher := &stubSearcher{
		matches: []embedding.Match{{ID: "m1", Content: "past trip to moab", Score: 0.5}},
	}
	e := NewHistoricalExtractor(searcher)

	snippets, err := e.Extract(context.Background(), "user-1", "plan a trip", RawContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(snippets))
	}
	expected := 0.5 * 0.4
	if math.Abs(snippets[0].RelevanceScore-expected) > 1e-6 {
		t.Errorf("expected score %v, got %v", expected, snippets[0].RelevanceScore)
	}
}

func TestHistoricalSearcherFailureFallsBack(t *testing.T) {
	e := NewHistoricalExtractor(&stubSearcher{err: errors.New("backend down")})

	snippets, err := e.Extract(context.Background(), "user-1", "plan a camping trip", RawContext{})
	if err == nil {
		t.Error("expected degradation error to be reported")
	}
	if len(snippets) != 2 {
		t.Errorf("expected template fallback, got %d snippets", len(snippets))
	}
}

func TestRetrieveSortsByRelevance(t *testing.T) {
	e := NewExtractor()
	raw := RawContext{
		UserProfile: &UserProfile{
			TravelPreferences: "plan a camping trip every summer",
			BudgetPreferences: "frugal",
		},
	}

	snippets := e.Retrieve(context.Background(), "user-1", "plan a camping trip", raw)
	for i := 1; i < len(snippets); i++ {
		if snippets[i].RelevanceScore > snippets[i-1].RelevanceScore {
			t.Errorf("snippets not sorted: %v before %v",
				snippets[i-1].RelevanceScore, snippets[i].RelevanceScore)
		}
	}
}

func TestRetrieveSurvivesSearcherError(t *testing.T) {
	e := NewExtractor(WithSearcher(&stubSearcher{err: errors.New("backend down")}))
	raw := RawContext{
		UserProfile: &UserProfile{TravelPreferences: "likes camping"},
	}

	// the failing searcher must not abort the other sources
	snippets := e.Retrieve(context.Background(), "user-1", "plan a camping trip", raw)
	var hasProfile bool
	for _, s := range snippets {
		if s.Source == SourceProfile {
			hasProfile = true
		}
	}
	if !hasProfile {
		t.Error("profile extraction lost when historical source degraded")
	}
}

type blockingSearcher struct{}

func (s *blockingSearcher) Search(ctx context.Context, _, _ string, _ int) ([]embedding.Match, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRetrieveTimeoutDegradesSlowSource(t *testing.T) {
	e := NewExtractor(
		WithSearcher(&blockingSearcher{}),
		WithExtractTimeout(10*time.Millisecond),
	)
	raw := RawContext{
		UserProfile: &UserProfile{TravelPreferences: "scenic routes"},
	}

	// 消息不含旅行关键词，超时降级后历史来源连模板片段也不产出
	snippets := e.Retrieve(context.Background(), "user-1", "hello there", raw)

	hasProfile := false
	for _, s := range snippets {
		if s.Source == SourceHistorical {
			t.Errorf("blocked source leaked a snippet: %+v", s)
		}
		if s.Source == SourceProfile {
			hasProfile = true
		}
	}
	if !hasProfile {
		t.Error("profile extraction lost when slow source timed out")
	}
}
