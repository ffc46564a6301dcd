package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

// CriticReviewer gatekeeps draft reports before finalization. The rules
// mode is a deterministic battery of crisis-communication checks; the
// model mode asks the classifier-grade generator for a verdict and falls
// back to the rules when the model is unavailable or unparseable.
//
// The revision bound is enforced here: once a draft has been revised the
// maximum number of times, the review approves it regardless, with a
// forced-approval note in the feedback.
type CriticReviewer struct {
	generator TextGenerator
	config    config.PipelineConfig
	logger    *logger.Logger
}

func NewCriticReviewer(generator TextGenerator, cfg config.PipelineConfig, log *logger.Logger) *CriticReviewer {
	return &CriticReviewer{
		generator: generator,
		config:    cfg,
		logger:    log,
	}
}

type criticIssue struct {
	severity string // "CRITICAL" or "HIGH"
	detail   string
}

// Phrase lists for the rule battery. Matching is case-insensitive
// substring search over the draft.

var outcomePromises = []string{
	"we guarantee", "i guarantee", "will never happen again",
	"will definitely", "100% resolved", "we promise", "i promise",
	"completely fixed", "assure you that this will never",
}

var dismissivePhrases = []string{
	"overreacting", "not a big deal", "calm down", "minor issue",
	"just a small", "isn't that serious", "blown out of proportion",
	"no reason to worry",
}

var legalRiskPhrases = []string{
	"we admit fault", "it is our fault", "we are liable",
	"our negligence", "we accept liability", "compensation is guaranteed",
	"we broke the law",
}

var urgencySignals = []string{
	"immediate", "urgent", "right away", "within 24 hours", "first 24 hours",
}

// Review evaluates the current draft. The returned feedback is the
// latest critique only; callers overwrite, never append.
func (critic *CriticReviewer) Review(ctx context.Context, state *models.AnalysisState) (bool, string, error) {
	startTime := time.Now()

	approved, feedback := critic.review(ctx, state)

	if !approved && state.RevisionCount >= critic.config.MaxRevisions {
		approved = true
		feedback = fmt.Sprintf(
			"FORCED APPROVAL: revision limit of %d reached; approving despite outstanding issues.\n\n%s",
			critic.config.MaxRevisions, feedback)
	}

	critic.logger.LogService("critic", "review", time.Since(startTime), map[string]interface{}{
		"session_id": state.SessionID,
		"revision":   state.RevisionCount,
		"approved":   approved,
		"mode":       critic.config.CriticMode,
	}, nil)

	return approved, feedback, nil
}

func (critic *CriticReviewer) review(ctx context.Context, state *models.AnalysisState) (bool, string) {
	if critic.config.CriticMode == "model" && critic.generator != nil {
		if approved, feedback, ok := critic.modelReview(ctx, state); ok {
			return approved, feedback
		}
		critic.logger.Warn("model critique unavailable, falling back to rules",
			"session_id", state.SessionID)
	}
	return critic.rulesReview(state)
}

// rulesReview runs the deterministic check battery. A draft is rejected
// when any CRITICAL issue is found, or more than one HIGH issue.
func (critic *CriticReviewer) rulesReview(state *models.AnalysisState) (bool, string) {
	draft := strings.ToLower(state.DraftReport)
	var issues []criticIssue

	for _, phrase := range outcomePromises {
		if strings.Contains(draft, phrase) {
			issues = append(issues, criticIssue{
				severity: "HIGH",
				detail:   fmt.Sprintf("promises an outcome that cannot be guaranteed (%q)", phrase),
			})
			break
		}
	}

	for _, phrase := range dismissivePhrases {
		if strings.Contains(draft, phrase) {
			issues = append(issues, criticIssue{
				severity: "CRITICAL",
				detail:   fmt.Sprintf("dismisses customer concerns (%q)", phrase),
			})
			break
		}
	}

	for _, phrase := range legalRiskPhrases {
		if strings.Contains(draft, phrase) {
			issues = append(issues, criticIssue{
				severity: "CRITICAL",
				detail:   fmt.Sprintf("creates legal exposure (%q)", phrase),
			})
			break
		}
	}

	if state.Risk != nil &&
		(state.Risk.RiskLevel == models.RiskLevelCritical || state.Risk.RiskLevel == models.RiskLevelHigh) &&
		!containsAny(draft, urgencySignals) {
		issues = append(issues, criticIssue{
			severity: "CRITICAL",
			detail:   fmt.Sprintf("urgency does not match the %s risk level", state.Risk.RiskLevel),
		})
	}

	for _, section := range []struct {
		marker string
		name   string
	}{
		{"immediate action", "immediate actions"},
		{"short-term", "short-term strategy"},
		{"long-term", "long-term strategy"},
	} {
		if !strings.Contains(draft, section.marker) {
			issues = append(issues, criticIssue{
				severity: "HIGH",
				detail:   fmt.Sprintf("missing the %s section", section.name),
			})
		}
	}

	if len(state.Evidence[models.CategorySafetyRisks]) > 0 && !strings.Contains(draft, "safety") {
		issues = append(issues, criticIssue{
			severity: "CRITICAL",
			detail:   "safety findings exist but the report never addresses safety",
		})
	}

	critical, high := 0, 0
	for _, issue := range issues {
		if issue.severity == "CRITICAL" {
			critical++
		} else {
			high++
		}
	}

	if critical == 0 && high <= 1 {
		if len(issues) == 0 {
			return true, "Approved: no issues found."
		}
		return true, "Approved with a note:\n" + formatIssues(issues)
	}

	return false, fmt.Sprintf("Rejected (%d critical, %d high severity issues):\n%s",
		critical, high, formatIssues(issues))
}

// modelReview asks the generator for a verdict. ok is false when the
// model cannot be reached or its answer lacks a parsable decision.
func (critic *CriticReviewer) modelReview(ctx context.Context, state *models.AnalysisState) (approved bool, feedback string, ok bool) {
	riskLevel := models.RiskLevelLow
	if state.Risk != nil {
		riskLevel = state.Risk.RiskLevel
	}

	prompt := fmt.Sprintf(
		"You are a crisis communications reviewer. Evaluate the draft below for a %s-risk situation around %q.\n\n"+
			"Reject drafts that promise outcomes, dismiss customer concerns, create legal exposure, "+
			"mismatch the urgency of the risk level, or skip immediate, short-term or long-term actions.\n\n"+
			"Draft:\n%s\n\n"+
			"Respond with a line \"DECISION: APPROVED\" or \"DECISION: REJECTED\", followed by your reasoning.",
		riskLevel, state.Topic, state.DraftReport)

	response, err := critic.generator.Generate(ctx, prompt)
	if err != nil {
		return false, "", false
	}

	upper := strings.ToUpper(response)
	switch {
	case strings.Contains(upper, "DECISION: APPROVED"):
		return true, strings.TrimSpace(response), true
	case strings.Contains(upper, "DECISION: REJECTED"):
		return false, strings.TrimSpace(response), true
	}
	return false, "", false
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func formatIssues(issues []criticIssue) string {
	var out strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&out, "- [%s] %s\n", issue.severity, issue.detail)
	}
	return out.String()
}
