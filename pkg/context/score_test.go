package context

import (
	"math"
	"testing"
)

func TestLexicalOverlap(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		content  string
		expected float64
	}{
		{"no overlap", "hello there", "completely different words", 0},
		{"full overlap", "hello world", "hello world", 1.0},
		{"partial overlap", "one two three four", "two four", 0.5},
		{"empty message", "", "some content", 0},
		{"travel boost", "plan a camping trip", "likes camping", 0.25 * 1.2},
		{"boost can exceed one", "camping trip", "camping trip", 1.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexicalOverlap(tt.message, tt.content)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestHasTravelKeyword(t *testing.T) {
	if !hasTravelKeyword("let's plan a trip") {
		t.Error("expected travel keyword match")
	}
	if hasTravelKeyword("what's the weather") {
		t.Error("expected no travel keyword match")
	}
}

func TestSourceWeight(t *testing.T) {
	tests := []struct {
		source   Source
		expected float64
	}{
		{SourceProfile, 0.9},
		{SourceRecentMemory, 0.8},
		{SourceConversation, 0.7},
		{SourceProactive, 0.6},
		{SourceHistorical, 0.4},
		{Source("unknown"), 0.5},
	}
	for _, tt := range tests {
		if got := tt.source.Weight(); got != tt.expected {
			t.Errorf("%s: expected weight %v, got %v", tt.source, tt.expected, got)
		}
	}
}
