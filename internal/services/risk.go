package services

import (
	"context"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

// RiskScorer folds mention sentiment, emotional virality and negative
// velocity into the single numeric risk score the rest of the pipeline
// keys off. Scoring is a pure function of its inputs: the same mentions
// always produce the same assessment.
type RiskScorer struct {
	sentiment SentimentScorer
	emotion   EmotionAnalyzer
	config    config.PipelineConfig
	logger    *logger.Logger
}

func NewRiskScorer(sentiment SentimentScorer, emotion EmotionAnalyzer, cfg config.PipelineConfig, log *logger.Logger) *RiskScorer {
	return &RiskScorer{
		sentiment: sentiment,
		emotion:   emotion,
		config:    cfg,
		logger:    log,
	}
}

// velocity windows: mentions up to an hour old count as "recent",
// mentions between one and five hours old as "past".
const (
	velocityRecentHours = 1.0
	velocityPastHours   = 5.0
)

// Score computes the weighted risk assessment over the evaluated
// mentions' full texts. No mentions produce the zero assessment (LOW
// risk, neutral emotion) rather than an error.
func (scorer *RiskScorer) Score(ctx context.Context, evaluated []models.EvaluatedMention) (models.RiskAssessment, error) {
	startTime := time.Now()

	assessment := models.RiskAssessment{
		RiskLevel:       models.RiskLevelLow,
		DominantEmotion: "neutral",
		ViralRisk:       models.ViralRiskLow,
	}

	for _, mention := range evaluated {
		score, err := scorer.sentiment.Score(ctx, mention.Text)
		if err != nil {
			scorer.logger.WithError(err).Warn("mention sentiment failed, counting neutral",
				"mention_id", mention.DedupKey())
			assessment.NeutralCount++
			continue
		}

		switch LabelSentiment(score) {
		case models.SentimentNegative:
			assessment.NegativeCount++
			switch {
			case mention.HoursSincePublished <= velocityRecentHours:
				assessment.RecentNegatives++
			case mention.HoursSincePublished <= velocityPastHours:
				assessment.PastNegatives++
			}
		case models.SentimentPositive:
			assessment.PositiveCount++
		default:
			assessment.NeutralCount++
		}
	}

	reading := scorer.analyzeEmotion(ctx, evaluated)
	assessment.DominantEmotion = reading.DominantEmotion
	assessment.ViralRisk = reading.ViralRisk

	assessment.VelocityPct = velocityPct(assessment.RecentNegatives, assessment.PastNegatives)

	total := assessment.NegativeCount + assessment.PositiveCount + assessment.NeutralCount
	if total > 0 {
		negativePct := float64(assessment.NegativeCount) / float64(total) * 100
		assessment.RiskScore = clampScore(negativePct*scorer.config.NegativeWeight +
			viralValue(assessment.ViralRisk)*scorer.config.ViralWeight)
	}
	assessment.RiskLevel = riskLevel(assessment.RiskScore)

	scorer.logger.LogService("risk", "score", time.Since(startTime), map[string]interface{}{
		"risk_score":   assessment.RiskScore,
		"risk_level":   string(assessment.RiskLevel),
		"velocity_pct": assessment.VelocityPct,
		"negatives":    assessment.NegativeCount,
	}, nil)

	return assessment, nil
}

// analyzeEmotion is fail-open: an analyzer error degrades to the neutral
// reading instead of failing the assessment.
func (scorer *RiskScorer) analyzeEmotion(ctx context.Context, evaluated []models.EvaluatedMention) EmotionReading {
	reading, err := scorer.emotion.Analyze(ctx, evaluated)
	if err != nil {
		scorer.logger.WithError(err).Warn("emotion analysis failed, assuming neutral")
		return EmotionReading{DominantEmotion: "neutral", ViralRisk: models.ViralRiskLow}
	}
	return reading
}

// velocityPct is the percent change in negative volume between the two
// windows. The denominator floor keeps a cold past window from dividing
// by zero.
func velocityPct(recent, past int) float64 {
	denominator := past
	if denominator < 1 {
		denominator = 1
	}
	return float64(recent-past) / float64(denominator) * 100
}

func viralValue(risk models.ViralRisk) float64 {
	switch risk {
	case models.ViralRiskHigh:
		return 100
	case models.ViralRiskMedium:
		return 50
	}
	return 0
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func riskLevel(score float64) models.RiskLevel {
	switch {
	case score > 80:
		return models.RiskLevelCritical
	case score > 50:
		return models.RiskLevelHigh
	case score > 20:
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}
