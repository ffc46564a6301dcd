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

// StrategyDrafter produces the crisis response report. With a generator
// wired in it drafts via the model; without one, or when the model call
// fails, it falls back to a deterministic template built from the same
// findings. Both paths cover the full response horizon: immediate,
// short-term and long-term actions.
type StrategyDrafter struct {
	generator TextGenerator
	config    config.PipelineConfig
	logger    *logger.Logger
}

// NewStrategyDrafter builds a drafter. generator may be nil; the
// template fallback then serves every draft.
func NewStrategyDrafter(generator TextGenerator, cfg config.PipelineConfig, log *logger.Logger) *StrategyDrafter {
	return &StrategyDrafter{
		generator: generator,
		config:    cfg,
		logger:    log,
	}
}

// Draft writes (or rewrites) the strategy report for the session. On a
// revision pass the prior draft and critic feedback are folded into the
// prompt so the model addresses what was rejected.
func (drafter *StrategyDrafter) Draft(ctx context.Context, state *models.AnalysisState) (string, error) {
	startTime := time.Now()

	report, usedModel := drafter.draft(ctx, state)

	drafter.logger.LogService("drafter", "draft", time.Since(startTime), map[string]interface{}{
		"session_id": state.SessionID,
		"revision":   state.RevisionCount,
		"used_model": usedModel,
		"length":     len(report),
	}, nil)

	return report, nil
}

func (drafter *StrategyDrafter) draft(ctx context.Context, state *models.AnalysisState) (report string, usedModel bool) {
	if drafter.generator == nil {
		return drafter.templateReport(state), false
	}

	generated, err := drafter.generator.Generate(ctx, drafter.buildPrompt(state))
	if err != nil || strings.TrimSpace(generated) == "" {
		drafter.logger.WithError(err).Warn("model drafting unavailable, using template report",
			"session_id", state.SessionID)
		return drafter.templateReport(state), false
	}
	return strings.TrimSpace(generated), true
}

func (drafter *StrategyDrafter) buildPrompt(state *models.AnalysisState) string {
	var prompt strings.Builder

	prompt.WriteString("You are a senior crisis communications strategist. Write a crisis response strategy report for the brand below.\n\n")
	fmt.Fprintf(&prompt, "Brand/topic: %s\n", state.Topic)

	if state.Risk != nil {
		fmt.Fprintf(&prompt, "Risk level: %s (score %.1f/100)\n", state.Risk.RiskLevel, state.Risk.RiskScore)
		fmt.Fprintf(&prompt, "Negative mention velocity: %+.0f%%\n", state.Risk.VelocityPct)
		fmt.Fprintf(&prompt, "Dominant emotion: %s, viral risk: %s\n", state.Risk.DominantEmotion, state.Risk.ViralRisk)
	}

	prompt.WriteString("\nFindings by risk category:\n")
	prompt.WriteString(drafter.findingsSummary(state))

	if len(state.SocialReplies) > 0 {
		prompt.WriteString("\nDrafted social replies awaiting human review:\n")
		for _, reply := range state.SocialReplies {
			fmt.Fprintf(&prompt, "- to %q: %s\n", reply.SourceTitle, reply.DraftReply)
		}
	}

	prompt.WriteString("\nThe report must contain these sections, in order:\n")
	prompt.WriteString("1. Executive Summary\n")
	prompt.WriteString("2. Risk Assessment\n")
	prompt.WriteString("3. Strategic Recommendations, split into Immediate Actions (first 24 hours), Short-term Strategy (1-7 days) and Long-term Strategy (beyond one week)\n")
	prompt.WriteString("4. Social Media Review\n")
	prompt.WriteString("5. Crisis Checklist\n")
	prompt.WriteString("\nNever promise outcomes you cannot guarantee, never dismiss customer concerns, and match the urgency of the risk level. If safety issues appear in the findings, address them explicitly in the immediate actions.\n")

	if state.RevisionCount > 0 && state.CriticFeedback != "" {
		prompt.WriteString("\nA reviewer rejected the previous draft. You must fix every issue raised.\n")
		fmt.Fprintf(&prompt, "\nPrevious draft:\n%s\n", state.DraftReport)
		fmt.Fprintf(&prompt, "\nReviewer feedback:\n%s\n", state.CriticFeedback)
	}

	return prompt.String()
}

// findingsSummary renders the per-category evidence in the fixed
// category order so prompts and template reports are deterministic.
func (drafter *StrategyDrafter) findingsSummary(state *models.AnalysisState) string {
	var summary strings.Builder

	for _, category := range models.AllRiskCategories {
		items := state.Evidence[category]
		if len(items) == 0 {
			fmt.Fprintf(&summary, "- %s: no findings\n", category.Title())
			continue
		}

		fmt.Fprintf(&summary, "- %s (%d items):\n", category.Title(), len(items))
		for _, item := range items {
			fmt.Fprintf(&summary, "  * [%s, %s] %s (%s)\n",
				item.SentimentLabel, item.TimeBucket, item.Snippet, item.SourceTitle)
		}
	}

	return summary.String()
}

// templateReport is the degraded-mode report. It carries the same
// findings and the full action horizon so a finalized session without
// any model access still produces an actionable document.
func (drafter *StrategyDrafter) templateReport(state *models.AnalysisState) string {
	var report strings.Builder

	fmt.Fprintf(&report, "# Crisis Response Strategy: %s\n\n", state.Topic)

	report.WriteString("## Executive Summary\n\n")
	if state.Risk != nil {
		fmt.Fprintf(&report, "Current risk level is %s (score %.1f/100) with %s viral risk. ",
			state.Risk.RiskLevel, state.Risk.RiskScore, state.Risk.ViralRisk)
		fmt.Fprintf(&report, "Negative mention velocity is %+.0f%% and the dominant emotion is %s. ",
			state.Risk.VelocityPct, state.Risk.DominantEmotion)
	}
	if state.TotalEvidence() == 0 {
		report.WriteString("Monitoring surfaced no findings in the current window; this plan covers readiness rather than active response.\n\n")
	} else {
		fmt.Fprintf(&report, "%d evidence items were collected across risk categories; details below.\n\n", state.TotalEvidence())
	}

	report.WriteString("## Risk Assessment\n\n")
	report.WriteString(drafter.findingsSummary(state))
	report.WriteString("\n")

	report.WriteString("## Strategic Recommendations\n\n")

	report.WriteString("### Immediate Actions (first 24 hours)\n\n")
	report.WriteString("- Acknowledge the situation publicly and commit to a follow-up within 24 hours.\n")
	report.WriteString("- Brief customer support on approved talking points; route escalations to the crisis team.\n")
	report.WriteString("- Pause scheduled promotional content until the situation stabilizes.\n")
	if len(state.Evidence[models.CategorySafetyRisks]) > 0 {
		report.WriteString("- Address the reported safety concerns directly: issue usage guidance and open an incident review with the product safety team.\n")
	}
	report.WriteString("\n")

	report.WriteString("### Short-term Strategy (1-7 days)\n\n")
	report.WriteString("- Publish a detailed response addressing each verified concern with concrete remediation steps.\n")
	report.WriteString("- Monitor mention volume and sentiment daily; re-run analysis if velocity rises.\n")
	report.WriteString("- Reach out individually to the most-engaged affected customers.\n\n")

	report.WriteString("### Long-term Strategy (beyond one week)\n\n")
	report.WriteString("- Run a root-cause review and publish the corrective measures taken.\n")
	report.WriteString("- Rebuild trust with transparent progress updates on the issues raised.\n")
	report.WriteString("- Fold the findings into product and support processes to prevent recurrence.\n\n")

	report.WriteString("## Social Media Review\n\n")
	if len(state.SocialReplies) == 0 {
		report.WriteString("No reply drafts pending; no recent negative mentions required a direct response.\n\n")
	} else {
		fmt.Fprintf(&report, "%d reply drafts are queued for human review before posting:\n\n", len(state.SocialReplies))
		for _, reply := range state.SocialReplies {
			fmt.Fprintf(&report, "- %s: %s\n", reply.SourceTitle, reply.DraftReply)
		}
		report.WriteString("\n")
	}

	report.WriteString("## Crisis Checklist\n\n")
	report.WriteString("- [ ] Public acknowledgment published\n")
	report.WriteString("- [ ] Support team briefed with talking points\n")
	report.WriteString("- [ ] Reply drafts reviewed and approved\n")
	report.WriteString("- [ ] Remediation plan communicated\n")
	report.WriteString("- [ ] Follow-up analysis scheduled\n")

	return report.String()
}
