package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"brandshield-pipeline/internal/models"
)

type stubEmotionAnalyzer struct {
	reading EmotionReading
	err     error
}

func (s *stubEmotionAnalyzer) Analyze(_ context.Context, _ []models.EvaluatedMention) (EmotionReading, error) {
	return s.reading, s.err
}

// scriptedSentiment reads the score from the mention text itself:
// "neg..." is negative, "pos..." positive, anything else neutral.
type scriptedSentiment struct{}

func (scriptedSentiment) Score(_ context.Context, text string) (float64, error) {
	switch {
	case strings.HasPrefix(text, "neg"):
		return -1, nil
	case strings.HasPrefix(text, "pos"):
		return 1, nil
	}
	return 0, nil
}

func mentionsWithLabels(negatives, positives, neutrals int) []models.EvaluatedMention {
	var evaluated []models.EvaluatedMention
	add := func(prefix string, count int) {
		for i := 0; i < count; i++ {
			evaluated = append(evaluated, models.EvaluatedMention{
				Mention:             models.Mention{ID: prefix, Text: prefix},
				HoursSincePublished: 10, // outside both velocity windows
			})
		}
	}
	add("neg", negatives)
	add("pos", positives)
	add("other", neutrals)
	return evaluated
}

func TestScoreWeightsNegativesAndVirality(t *testing.T) {
	scorer := NewRiskScorer(
		scriptedSentiment{},
		&stubEmotionAnalyzer{reading: EmotionReading{DominantEmotion: "anger", ViralRisk: models.ViralRiskHigh}},
		testPipelineConfig(), testLogger(t),
	)

	// 7 of 10 negative at weight 0.6, HIGH virality at weight 0.4:
	// 70*0.6 + 100*0.4 = 82.
	assessment, err := scorer.Score(context.Background(), mentionsWithLabels(7, 2, 1))
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if math.Abs(assessment.RiskScore-82) > 1e-9 {
		t.Errorf("expected risk score 82, got %.4f", assessment.RiskScore)
	}
	if assessment.RiskLevel != models.RiskLevelCritical {
		t.Errorf("score 82 must be CRITICAL, got %s", assessment.RiskLevel)
	}
	if assessment.NegativeCount != 7 || assessment.PositiveCount != 2 || assessment.NeutralCount != 1 {
		t.Errorf("unexpected counts: %d/%d/%d",
			assessment.NegativeCount, assessment.PositiveCount, assessment.NeutralCount)
	}
}

func TestScoreEmptyInputIsLowRisk(t *testing.T) {
	scorer := NewRiskScorer(
		scriptedSentiment{},
		&stubEmotionAnalyzer{reading: EmotionReading{DominantEmotion: "neutral", ViralRisk: models.ViralRiskLow}},
		testPipelineConfig(), testLogger(t),
	)

	assessment, err := scorer.Score(context.Background(), nil)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if assessment.RiskScore != 0 {
		t.Errorf("empty input must score 0, got %.2f", assessment.RiskScore)
	}
	if assessment.RiskLevel != models.RiskLevelLow {
		t.Errorf("empty input must be LOW, got %s", assessment.RiskLevel)
	}
	if assessment.VelocityPct != 0 {
		t.Errorf("empty input must have zero velocity, got %.2f", assessment.VelocityPct)
	}
	if assessment.DominantEmotion != "neutral" || assessment.ViralRisk != models.ViralRiskLow {
		t.Errorf("empty input must read neutral/LOW, got %s/%s",
			assessment.DominantEmotion, assessment.ViralRisk)
	}
}

func TestScoreVelocityComparesTimeWindows(t *testing.T) {
	scorer := NewRiskScorer(
		scriptedSentiment{},
		&stubEmotionAnalyzer{reading: EmotionReading{DominantEmotion: "anger", ViralRisk: models.ViralRiskLow}},
		testPipelineConfig(), testLogger(t),
	)

	evaluated := []models.EvaluatedMention{
		{Mention: models.Mention{ID: "r1", Text: "neg"}, HoursSincePublished: 0.2},
		{Mention: models.Mention{ID: "r2", Text: "neg"}, HoursSincePublished: 0.5},
		{Mention: models.Mention{ID: "r3", Text: "neg"}, HoursSincePublished: 0.9},
		{Mention: models.Mention{ID: "p1", Text: "neg"}, HoursSincePublished: 3},
		{Mention: models.Mention{ID: "old", Text: "neg"}, HoursSincePublished: 12}, // outside both windows
		{Mention: models.Mention{ID: "ok", Text: "pos"}, HoursSincePublished: 0.1}, // positive, never counted
	}

	assessment, err := scorer.Score(context.Background(), evaluated)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	if assessment.RecentNegatives != 3 || assessment.PastNegatives != 1 {
		t.Fatalf("expected 3 recent / 1 past negatives, got %d/%d",
			assessment.RecentNegatives, assessment.PastNegatives)
	}
	// (3-1)/1 * 100 = 200
	if math.Abs(assessment.VelocityPct-200) > 1e-9 {
		t.Errorf("expected velocity 200%%, got %.2f", assessment.VelocityPct)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	scorer := NewRiskScorer(
		scriptedSentiment{},
		&stubEmotionAnalyzer{reading: EmotionReading{DominantEmotion: "anger", ViralRisk: models.ViralRiskMedium}},
		testPipelineConfig(), testLogger(t),
	)

	evaluated := []models.EvaluatedMention{
		{Mention: models.Mention{ID: "a", Text: "neg"}, HoursSincePublished: 0.5},
		{Mention: models.Mention{ID: "b", Text: "neg"}, HoursSincePublished: 2},
		{Mention: models.Mention{ID: "c", Text: "pos"}, HoursSincePublished: 4},
	}

	first, err := scorer.Score(context.Background(), evaluated)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := scorer.Score(context.Background(), evaluated)
		if err != nil {
			t.Fatalf("score failed on run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("assessment diverged on run %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskLevelLow},
		{20, models.RiskLevelLow},
		{20.1, models.RiskLevelMedium},
		{50, models.RiskLevelMedium},
		{50.1, models.RiskLevelHigh},
		{80, models.RiskLevelHigh},
		{80.1, models.RiskLevelCritical},
		{100, models.RiskLevelCritical},
	}

	for _, tc := range cases {
		if got := riskLevel(tc.score); got != tc.want {
			t.Errorf("riskLevel(%.1f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
