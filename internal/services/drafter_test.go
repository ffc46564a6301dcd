package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"brandshield-pipeline/internal/models"
)

type stubGenerator struct {
	output string
	err    error
	calls  int
	prompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.output, s.err
}

func analyzedState(evidence map[models.RiskCategory][]models.Evidence) *models.AnalysisState {
	state := models.NewAnalysisState("Acme Phone", []models.Mention{{ID: "m1", Text: "x"}}, time.Now().UTC())
	state.Stage = models.StageAnalyzed
	if evidence != nil {
		state.Evidence = evidence
	}
	state.Risk = &models.RiskAssessment{
		RiskScore:       82,
		RiskLevel:       models.RiskLevelCritical,
		DominantEmotion: "anger",
		ViralRisk:       models.ViralRiskHigh,
	}
	return state
}

func TestTemplateReportCoversFullHorizon(t *testing.T) {
	drafter := NewStrategyDrafter(nil, testPipelineConfig(), testLogger(t))

	report, err := drafter.Draft(context.Background(), analyzedState(nil))
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}

	lowered := strings.ToLower(report)
	for _, section := range []string{
		"executive summary",
		"risk assessment",
		"immediate action",
		"short-term",
		"long-term",
		"social media review",
		"crisis checklist",
	} {
		if !strings.Contains(lowered, section) {
			t.Errorf("template report missing %q section", section)
		}
	}
}

func TestTemplateReportStatesNoFindings(t *testing.T) {
	drafter := NewStrategyDrafter(nil, testPipelineConfig(), testLogger(t))

	report, err := drafter.Draft(context.Background(), analyzedState(nil))
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}
	if !strings.Contains(report, "no findings") {
		t.Error("empty categories must read \"no findings\"")
	}
}

func TestTemplateReportAddressesSafetyFindings(t *testing.T) {
	drafter := NewStrategyDrafter(nil, testPipelineConfig(), testLogger(t))

	evidence := map[models.RiskCategory][]models.Evidence{
		models.CategorySafetyRisks: {{
			Category:       models.CategorySafetyRisks,
			SourceTitle:    "forum post",
			Snippet:        "battery got dangerously hot",
			SentimentLabel: models.SentimentNegative,
			TimeBucket:     "2 hours ago",
		}},
	}

	report, err := drafter.Draft(context.Background(), analyzedState(evidence))
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(report), "safety") {
		t.Error("a report with safety findings must address safety")
	}
}

func TestDraftFallsBackWhenGeneratorFails(t *testing.T) {
	generator := &stubGenerator{err: errors.New("model down")}
	drafter := NewStrategyDrafter(generator, testPipelineConfig(), testLogger(t))

	report, err := drafter.Draft(context.Background(), analyzedState(nil))
	if err != nil {
		t.Fatalf("generator failure must not fail drafting: %v", err)
	}
	if generator.calls != 1 {
		t.Errorf("expected one generation attempt, got %d", generator.calls)
	}
	if !strings.Contains(strings.ToLower(report), "immediate action") {
		t.Error("fallback report must still carry the full action plan")
	}
}

func TestDraftUsesGeneratorOutput(t *testing.T) {
	generator := &stubGenerator{output: "model-written strategy with immediate actions"}
	drafter := NewStrategyDrafter(generator, testPipelineConfig(), testLogger(t))

	report, err := drafter.Draft(context.Background(), analyzedState(nil))
	if err != nil {
		t.Fatalf("draft failed: %v", err)
	}
	if report != generator.output {
		t.Errorf("expected the model draft verbatim, got %q", report)
	}
}

func TestRevisionPromptCarriesFeedback(t *testing.T) {
	generator := &stubGenerator{output: "revised draft"}
	drafter := NewStrategyDrafter(generator, testPipelineConfig(), testLogger(t))

	state := analyzedState(nil)
	state.RevisionCount = 1
	state.DraftReport = "previous draft body"
	state.CriticFeedback = "Rejected: missing the long-term strategy section"

	if _, err := drafter.Draft(context.Background(), state); err != nil {
		t.Fatalf("draft failed: %v", err)
	}
	if !strings.Contains(generator.prompt, state.CriticFeedback) {
		t.Error("revision prompt must include the critic feedback")
	}
	if !strings.Contains(generator.prompt, state.DraftReport) {
		t.Error("revision prompt must include the previous draft")
	}
}
