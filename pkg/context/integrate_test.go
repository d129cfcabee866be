package context

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIntegrateEmptyInput(t *testing.T) {
	g := NewIntegrator()
	if out := g.Integrate(context.Background(), nil, "hello"); out != nil {
		t.Errorf("expected nil output for empty input, got %v", out)
	}
}

func TestConflictResolutionKeepsWinner(t *testing.T) {
	now := time.Now()
	g := NewIntegrator(WithClock(fixedClock(now)))

	snippets := []Snippet{
		NewSnippet("prefers fast routes", SourceProfile, CategoryTravel, 0.9, WithTimestamp(now)),
		NewSnippet("prefers scenic routes", SourceProfile, CategoryTravel, 0.95, WithTimestamp(now)),
	}

	out := g.resolveConflicts(snippets)
	if len(out) != 1 {
		t.Fatalf("expected 1 snippet after conflict resolution, got %d", len(out))
	}
	if out[0].Content != "prefers scenic routes" {
		t.Errorf("expected higher-relevance snippet kept, got %q", out[0].Content)
	}
}

func TestConflictResolutionTimestampTiebreak(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Minute)

	g := NewIntegrator()
	snippets := []Snippet{
		NewSnippet("older fact", SourceProfile, CategoryTravel, 0.9, WithTimestamp(older)),
		NewSnippet("newer fact", SourceProfile, CategoryTravel, 0.9, WithTimestamp(now)),
	}

	out := g.resolveConflicts(snippets)
	if len(out) != 1 || out[0].Content != "newer fact" {
		t.Errorf("expected newer snippet on relevance tie, got %v", out)
	}
}

func TestConflictResolutionNoteForLargeGroups(t *testing.T) {
	now := time.Now()
	g := NewIntegrator()

	snippets := []Snippet{
		NewSnippet("fact one", SourceProfile, CategoryTravel, 0.5, WithTimestamp(now)),
		NewSnippet("fact two", SourceProfile, CategoryTravel, 0.7, WithTimestamp(now)),
		NewSnippet("fact three", SourceProfile, CategoryTravel, 0.6, WithTimestamp(now)),
	}

	out := g.resolveConflicts(snippets)
	if len(out) != 2 {
		t.Fatalf("expected winner plus conflict note, got %d snippets", len(out))
	}
	note := out[1]
	if note.Source != SourceConflictResolution || note.Category != CategoryMeta {
		t.Errorf("unexpected note source/category: %s/%s", note.Source, note.Category)
	}
	if !strings.Contains(note.Content, "2") {
		t.Errorf("note should mention discarded count, got %q", note.Content)
	}
}

func TestTemporalWeighting(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g := NewIntegrator(WithClock(fixedClock(now)))

	tests := []struct {
		name   string
		age    time.Duration
		factor float64
	}{
		{"fresh", 30 * time.Minute, 1.0},
		{"hours old", 6 * time.Hour, 0.8},
		{"days old", 3 * 24 * time.Hour, 0.6},
		{"weeks old", 30 * 24 * time.Hour, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnippet("fact", SourceProfile, CategoryTravel, 0.5,
				WithTimestamp(now.Add(-tt.age)))
			out := g.applyTemporalWeighting([]Snippet{s})
			expected := 0.5 * tt.factor
			if math.Abs(out[0].RelevanceScore-expected) > 1e-9 {
				t.Errorf("expected %v, got %v", expected, out[0].RelevanceScore)
			}
		})
	}
}

func TestTemporalWeightingNeverIncreases(t *testing.T) {
	now := time.Now()
	g := NewIntegrator(WithClock(fixedClock(now)))

	for _, age := range []time.Duration{0, time.Hour, 25 * time.Hour, 200 * 24 * time.Hour} {
		s := NewSnippet("fact", SourceProfile, CategoryTravel, 0.73, WithTimestamp(now.Add(-age)))
		out := g.applyTemporalWeighting([]Snippet{s})
		if out[0].RelevanceScore > 0.73 {
			t.Errorf("age %v: decay increased score to %v", age, out[0].RelevanceScore)
		}
	}
}

func TestClusteringReduction(t *testing.T) {
	now := time.Now()
	g := NewIntegrator()

	scores := []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	snippets := make([]Snippet, len(scores))
	for i, score := range scores {
		snippets[i] = NewSnippet(strings.Repeat("x", 60), SourceConversation,
			CategoryConversation, score, WithTimestamp(now))
	}

	out := g.clusterRelated(snippets)
	if len(out) != 4 {
		t.Fatalf("expected top-3 plus cluster snippet, got %d", len(out))
	}

	cluster := out[3]
	if cluster.Source != SourceClustered {
		t.Errorf("expected clustered source, got %s", cluster.Source)
	}
	// folded scores 0.6 and 0.5, arithmetic mean
	if math.Abs(cluster.RelevanceScore-0.55) > 1e-9 {
		t.Errorf("expected mean score 0.55, got %v", cluster.RelevanceScore)
	}
	for _, part := range strings.Split(cluster.Content, "; ") {
		if len([]rune(part)) > 50 {
			t.Errorf("cluster part exceeds 50 chars: %q", part)
		}
	}
}

func TestClusteringPassThroughSmallGroups(t *testing.T) {
	now := time.Now()
	g := NewIntegrator()

	snippets := []Snippet{
		NewSnippet("a", SourceProfile, CategoryTravel, 0.9, WithTimestamp(now)),
		NewSnippet("b", SourceProfile, CategoryTravel, 0.8, WithTimestamp(now)),
		NewSnippet("c", SourceProfile, CategoryTravel, 0.7, WithTimestamp(now)),
	}
	out := g.clusterRelated(snippets)
	if len(out) != 3 {
		t.Errorf("expected pass-through for group of 3, got %d", len(out))
	}
}

func TestTokenBudgetInvariant(t *testing.T) {
	g := NewIntegrator(WithMaxContextTokens(50))
	counter := NewWordCounter()

	now := time.Now()
	var snippets []Snippet
	for i := 0; i < 10; i++ {
		content := strings.Repeat("word ", 15)
		snippets = append(snippets, NewSnippet(content, SourceProfile, CategoryTravel,
			float64(10-i)/10, WithTimestamp(now)))
	}

	packed := g.packTokenBudget(snippets)

	total := 0
	truncated := 0
	for _, s := range packed {
		total += counter.Count(s.Content)
		if len(strings.Fields(s.Content)) < 15 {
			truncated++
		}
	}
	if total > 50 {
		t.Errorf("packed tokens %d exceed budget 50", total)
	}
	if truncated > 1 {
		t.Errorf("expected at most one truncated snippet, got %d", truncated)
	}
}

func TestTokenBudgetTruncationPenalty(t *testing.T) {
	g := NewIntegrator(WithMaxContextTokens(20))
	now := time.Now()

	s := NewSnippet(strings.Repeat("word ", 40), SourceProfile, CategoryTravel, 1.0,
		WithTimestamp(now))
	packed := g.packTokenBudget([]Snippet{s})

	if len(packed) != 1 {
		t.Fatalf("expected partial fit, got %d snippets", len(packed))
	}
	if math.Abs(packed[0].RelevanceScore-0.8) > 1e-9 {
		t.Errorf("expected 0.8 penalty score, got %v", packed[0].RelevanceScore)
	}
	if words := len(strings.Fields(packed[0].Content)); words < 10 {
		t.Errorf("truncated snippet has %d words, below partial-fit floor", words)
	}
}

func TestTokenBudgetRejectsTinyRemainder(t *testing.T) {
	// budget fits fewer than 10 words, so nothing may be packed
	g := NewIntegrator(WithMaxContextTokens(5))
	s := NewSnippet(strings.Repeat("word ", 40), SourceProfile, CategoryTravel, 1.0)
	if packed := g.packTokenBudget([]Snippet{s}); len(packed) != 0 {
		t.Errorf("expected empty packing, got %d snippets", len(packed))
	}
}

func TestIntegrateDeterminism(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g := NewIntegrator(WithClock(fixedClock(now)))

	build := func() []Snippet {
		return []Snippet{
			{ID: "a", Content: "likes camping near lakes", Source: SourceProfile, Category: CategoryTravel, RelevanceScore: 0.9, Timestamp: now.Add(-time.Minute)},
			{ID: "b", Content: "asked about tire pressure", Source: SourceConversation, Category: CategoryConversation, RelevanceScore: 0.6, Timestamp: now.Add(-2 * time.Hour)},
			{ID: "c", Content: "budget around 2000", Source: SourceProfile, Category: CategoryPersonal, RelevanceScore: 0.4, Timestamp: now.Add(-48 * time.Hour)},
		}
	}

	first := g.Integrate(context.Background(), build(), "plan a trip")
	second := g.Integrate(context.Background(), build(), "plan a trip")
	if !reflect.DeepEqual(first, second) {
		t.Error("integrate is not deterministic for fixed inputs and clock")
	}
}

type rejectAllChecker struct{}

func (rejectAllChecker) Consistent(Snippet, []Snippet) bool { return false }

func TestConsistencyDowngrade(t *testing.T) {
	g := NewIntegrator(WithConsistencyChecker(rejectAllChecker{}))

	s := NewSnippet("questionable fact", SourceProfile, CategoryTravel, 1.0)
	out := g.validateConsistency([]Snippet{s})

	if math.Abs(out[0].RelevanceScore-0.7) > 1e-9 {
		t.Errorf("expected 0.7 downgrade, got %v", out[0].RelevanceScore)
	}
	if !strings.HasPrefix(out[0].Content, "[Unverified] ") {
		t.Errorf("expected unverified prefix, got %q", out[0].Content)
	}
}
