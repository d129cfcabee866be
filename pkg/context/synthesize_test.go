package context

import (
	"math"
	"strings"
	"testing"
)

func TestGenerateEmptyInput(t *testing.T) {
	s := NewSynthesizer()
	out := s.Generate(nil, "user-1")

	if out.CoreContext != "" || out.SupportingContext != "" ||
		out.EmotionalContext != "" || out.ProactiveContext != "" {
		t.Error("expected empty blocks for empty input")
	}
	if out.ContextSummary != "No significant context available." {
		t.Errorf("unexpected summary: %q", out.ContextSummary)
	}
	if out.ConfidenceScore != 0 {
		t.Errorf("expected zero confidence, got %v", out.ConfidenceScore)
	}
}

func TestGeneratePartition(t *testing.T) {
	s := NewSynthesizer()
	snippets := []Snippet{
		NewSnippet("critical fact", SourceProfile, CategoryTravel, 0.9),
		NewSnippet("supporting fact", SourceProfile, CategoryPersonal, 0.27),
	}

	out := s.Generate(snippets, "user-1")
	if !strings.Contains(out.CoreContext, "- critical fact") {
		t.Errorf("core block missing critical snippet: %q", out.CoreContext)
	}
	if strings.Contains(out.CoreContext, "supporting fact") {
		t.Error("supporting snippet leaked into core block")
	}
	if !strings.Contains(out.SupportingContext, "• supporting fact") {
		t.Errorf("supporting block missing snippet: %q", out.SupportingContext)
	}
}

func TestGenerateBlockLimits(t *testing.T) {
	s := NewSynthesizer()
	var snippets []Snippet
	for i := 0; i < 12; i++ {
		snippets = append(snippets, NewSnippet("high fact", SourceProfile, CategoryTravel, 0.9))
		snippets = append(snippets, NewSnippet("low fact", SourceProfile, CategoryPersonal, 0.2))
	}

	out := s.Generate(snippets, "user-1")
	if lines := strings.Split(out.CoreContext, "\n"); len(lines) != 5 {
		t.Errorf("expected 5 core lines, got %d", len(lines))
	}
	if lines := strings.Split(out.SupportingContext, "\n"); len(lines) != 8 {
		t.Errorf("expected 8 supporting lines, got %d", len(lines))
	}
}

func TestGenerateEmotionalAndProactiveBlocks(t *testing.T) {
	s := NewSynthesizer()
	snippets := []Snippet{
		NewSnippet("feeling excited", SourceEmotional, CategoryEmotional, 0.5),
		NewSnippet("trusted companion stage", SourceEmotional, CategoryRelationship, 0.4),
		NewSnippet("Opportunity: discount nearby", SourceProactive, CategoryProactive, 0.3),
	}

	out := s.Generate(snippets, "user-1")
	if !strings.Contains(out.EmotionalContext, "feeling excited") ||
		!strings.Contains(out.EmotionalContext, "trusted companion stage") {
		t.Errorf("emotional block incomplete: %q", out.EmotionalContext)
	}
	if !strings.Contains(out.ProactiveContext, "discount nearby") {
		t.Errorf("proactive block incomplete: %q", out.ProactiveContext)
	}
}

func TestGenerateSummary(t *testing.T) {
	s := NewSynthesizer()
	long := strings.Repeat("a", 150)
	snippets := []Snippet{
		NewSnippet(long, SourceProfile, CategoryTravel, 0.9),
		NewSnippet("second", SourceProfile, CategoryPersonal, 0.8),
	}

	out := s.Generate(snippets, "user-1")
	if !strings.HasPrefix(out.ContextSummary, "Key Context: ") {
		t.Errorf("missing summary prefix: %q", out.ContextSummary)
	}
	parts := strings.Split(strings.TrimPrefix(out.ContextSummary, "Key Context: "), " | ")
	if len(parts) != 2 {
		t.Fatalf("expected 2 summary parts, got %d", len(parts))
	}
	if len(parts[0]) != 100 {
		t.Errorf("expected first part truncated to 100 chars, got %d", len(parts[0]))
	}
}

func TestGenerateConfidence(t *testing.T) {
	s := NewSynthesizer()
	snippets := []Snippet{
		NewSnippet("a", SourceProfile, CategoryTravel, 0.6),
		NewSnippet("b", SourceProfile, CategoryPersonal, 0.4),
	}

	out := s.Generate(snippets, "user-1")
	// (avg 0.5 + coverage 2/10) / 2
	expected := (0.5 + 0.2) / 2
	if math.Abs(out.ConfidenceScore-expected) > 1e-9 {
		t.Errorf("expected confidence %v, got %v", expected, out.ConfidenceScore)
	}
}

func TestHighlightImmediateRelevance(t *testing.T) {
	s := NewSynthesizer()
	integrated := IntegratedContext{
		CoreContext:       "- plan a camping trip to moab",
		SupportingContext: "• general note about tires",
	}

	out := s.Highlight(integrated, "camping trip ideas")
	if !strings.Contains(out.CoreContext, "IMMEDIATE RELEVANCE:") {
		t.Errorf("expected immediate relevance section: %q", out.CoreContext)
	}
	if !strings.HasPrefix(out.CoreContext, integrated.CoreContext) {
		t.Error("highlight must preserve the original core block")
	}
}

func TestHighlightNoOverlap(t *testing.T) {
	s := NewSynthesizer()
	integrated := IntegratedContext{CoreContext: "- unrelated note"}

	out := s.Highlight(integrated, "completely different topic")
	if strings.Contains(out.CoreContext, "IMMEDIATE RELEVANCE:") {
		t.Error("no immediate relevance section expected without overlap")
	}
}

func TestHighlightWrapsBlocks(t *testing.T) {
	s := NewSynthesizer()
	integrated := IntegratedContext{
		EmotionalContext: "- feeling excited",
		ProactiveContext: "- Opportunity: discount",
	}

	out := s.Highlight(integrated, "hello")
	if !strings.HasPrefix(out.EmotionalContext, "EMOTIONAL AWARENESS:\n") {
		t.Errorf("emotional block not wrapped: %q", out.EmotionalContext)
	}
	if !strings.HasPrefix(out.ProactiveContext, "PROACTIVE OPPORTUNITIES:\n") {
		t.Errorf("proactive block not wrapped: %q", out.ProactiveContext)
	}
}
