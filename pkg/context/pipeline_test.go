package context

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wheelswins/pam-context-go/pkg/otel"
)

func TestPipelineEndToEnd(t *testing.T) {
	now := time.Now()
	p := NewPipeline(
		WithPipelineIntegrator(NewIntegrator(WithClock(fixedClock(now)))),
	)

	raw := RawContext{
		UserProfile: &UserProfile{
			TravelPreferences: "likes camping",
		},
		EmotionalContext: &EmotionalContext{
			CurrentEmotion: "excited",
		},
		ProactiveItems: &ProactiveItems{
			Opportunities: []string{"campground discount on your route"},
		},
	}

	result := p.Process(context.Background(), "user-1", "plan a camping trip", raw)

	// profile snippet scores 0.27, below the 0.8 threshold
	if strings.Contains(result.CoreContext, "likes camping") {
		t.Error("low relevance snippet must not reach core block")
	}
	if !strings.Contains(result.SupportingContext, "likes camping") {
		t.Errorf("profile snippet missing from supporting block: %q", result.SupportingContext)
	}
	if !strings.Contains(result.EmotionalContext, "excited") {
		t.Errorf("emotional block missing: %q", result.EmotionalContext)
	}
	if result.ConfidenceScore <= 0 {
		t.Errorf("expected positive confidence, got %v", result.ConfidenceScore)
	}

	// transfer stage ran: insights and handoff are readable
	insights, err := p.Transfer().GetInsights(context.Background(), "user-1")
	if err != nil || insights == nil {
		t.Fatalf("expected insights after pipeline run, err=%v", err)
	}
	if insights.EmotionalState != "excited" {
		t.Errorf("expected derived excited state, got %q", insights.EmotionalState)
	}

	handoff, err := p.Transfer().GetHandoff(context.Background(), "user-1")
	if err != nil || handoff == nil {
		t.Fatalf("expected handoff after pipeline run, err=%v", err)
	}
	if handoff.Summary != result.ContextSummary {
		t.Error("handoff summary must match the returned context summary")
	}
}

func TestPipelineEmptyContext(t *testing.T) {
	p := NewPipeline()
	result := p.Process(context.Background(), "user-1", "hello there", RawContext{})

	if result.ContextSummary != "No significant context available." {
		t.Errorf("unexpected summary: %q", result.ContextSummary)
	}
	if result.ConfidenceScore != 0 {
		t.Errorf("expected zero confidence, got %v", result.ConfidenceScore)
	}
}

func TestPipelineRecordsMetrics(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	p := NewPipeline(WithPipelineMetrics(metrics))

	p.Process(context.Background(), "user-1", "plan a trip", RawContext{
		UserProfile: &UserProfile{TravelPreferences: "scenic trip routes"},
	})

	if metrics.GetCounterValue(otel.MetricPipelineRuns) != 1 {
		t.Errorf("expected 1 pipeline run recorded, got %d",
			metrics.GetCounterValue(otel.MetricPipelineRuns))
	}
}
