package services

import (
	"testing"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LogConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return log
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		RetentionWindow:    48 * time.Hour,
		BreakingWindow:     6 * time.Hour,
		TopK:               3,
		ChunkSize:          500,
		ChunkOverlap:       50,
		RelevanceThreshold: 0.25,
		NegativeWeight:     0.6,
		ViralWeight:        0.4,
		MaxRevisions:       2,
		MaxSocialReplies:   5,
		SnippetLimit:       280,
		CriticMode:         "rules",
	}
}

func TestEvaluateDropsMentionsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evaluator := NewRecencyEvaluator(testPipelineConfig(), testLogger(t))

	mentions := []models.Mention{
		{ID: "fresh", Text: "fresh", PublishedAt: now.Add(-2 * time.Hour).Format(time.RFC3339)},
		{ID: "edge", Text: "edge", PublishedAt: now.Add(-47 * time.Hour).Format(time.RFC3339)},
		{ID: "stale", Text: "stale", PublishedAt: now.Add(-72 * time.Hour).Format(time.RFC3339)},
	}

	evaluated := evaluator.Evaluate(mentions, now, 48*time.Hour)

	if len(evaluated) != 2 {
		t.Fatalf("expected 2 kept mentions, got %d", len(evaluated))
	}
	for _, item := range evaluated {
		if item.ID == "stale" {
			t.Error("mention older than the window should have been dropped")
		}
		if item.HoursSincePublished > 48 {
			t.Errorf("kept mention %s is %.1f hours old", item.ID, item.HoursSincePublished)
		}
	}
}

func TestEvaluateKeepsUnparseableTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evaluator := NewRecencyEvaluator(testPipelineConfig(), testLogger(t))

	evaluated := evaluator.Evaluate([]models.Mention{
		{ID: "garbled", Text: "text", PublishedAt: "three days ago maybe"},
	}, now, 48*time.Hour)

	if len(evaluated) != 1 {
		t.Fatalf("unparseable timestamp must be kept, got %d mentions", len(evaluated))
	}
	if evaluated[0].TimeBucket != "unknown" {
		t.Errorf("expected time bucket %q, got %q", "unknown", evaluated[0].TimeBucket)
	}
	if evaluated[0].IsBreaking {
		t.Error("unparseable timestamp must not count as breaking")
	}
}

func TestEvaluateClampsFutureTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evaluator := NewRecencyEvaluator(testPipelineConfig(), testLogger(t))

	evaluated := evaluator.Evaluate([]models.Mention{
		{ID: "future", Text: "text", PublishedAt: now.Add(3 * time.Hour).Format(time.RFC3339)},
	}, now, 48*time.Hour)

	if len(evaluated) != 1 {
		t.Fatalf("future timestamp must be kept, got %d mentions", len(evaluated))
	}
	if evaluated[0].HoursSincePublished != 0 {
		t.Errorf("future age must clamp to 0, got %.2f", evaluated[0].HoursSincePublished)
	}
	if !evaluated[0].IsBreaking {
		t.Error("clamped future mention must be marked breaking")
	}
}

func TestEvaluateEmptyTimestampMeansNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evaluator := NewRecencyEvaluator(testPipelineConfig(), testLogger(t))

	evaluated := evaluator.Evaluate([]models.Mention{
		{ID: "no-ts", Text: "text"},
	}, now, 48*time.Hour)

	if len(evaluated) != 1 {
		t.Fatalf("expected 1 mention, got %d", len(evaluated))
	}
	if evaluated[0].HoursSincePublished != 0 {
		t.Errorf("missing timestamp should mean zero hours, got %.2f", evaluated[0].HoursSincePublished)
	}
	if !evaluated[0].IsBreaking {
		t.Error("a mention published now falls inside the breaking window")
	}
	if evaluated[0].TimeBucket != "just now" {
		t.Errorf("expected time bucket %q, got %q", "just now", evaluated[0].TimeBucket)
	}
}

func TestEvaluateSortsMostRecentFirst(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	evaluator := NewRecencyEvaluator(testPipelineConfig(), testLogger(t))

	mentions := []models.Mention{
		{ID: "old", Text: "a", PublishedAt: now.Add(-30 * time.Hour).Format(time.RFC3339)},
		{ID: "new", Text: "b", PublishedAt: now.Add(-1 * time.Hour).Format(time.RFC3339)},
		{ID: "mid", Text: "c", PublishedAt: now.Add(-10 * time.Hour).Format(time.RFC3339)},
	}

	evaluated := evaluator.Evaluate(mentions, now, 48*time.Hour)

	wantOrder := []string{"new", "mid", "old"}
	for i, want := range wantOrder {
		if evaluated[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, evaluated[i].ID)
		}
	}
}

func TestTimeBucketRendering(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 minutes ago"},
		{1 * time.Minute, "1 minute ago"},
		{3 * time.Hour, "3 hours ago"},
		{26 * time.Hour, "1 day, 2 hours ago"},
	}

	for _, tc := range cases {
		if got := timeBucket(tc.age); got != tc.want {
			t.Errorf("timeBucket(%v) = %q, want %q", tc.age, got, tc.want)
		}
	}
}
