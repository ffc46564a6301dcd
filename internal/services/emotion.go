package services

import (
	"context"
	"sort"
	"strings"

	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/cloudflare/ahocorasick"
)

// LexiconEmotionAnalyzer estimates the dominant emotion and viral risk of
// an evaluated-mention set from fixed emotion lexicons. Danger combines
// the average anger level with the anger trend between the oldest and
// newest mentions: high anger that is still rising is what goes viral.
type LexiconEmotionAnalyzer struct {
	matchers map[string]*ahocorasick.Matcher
	sizes    map[string]int
	logger   *logger.Logger
}

var emotionLexicons = map[string][]string{
	"anger": {
		"angry", "furious", "outrage", "rage", "infuriat", "livid", "hate",
		"disgust", "boycott", "unacceptable", "fed up", "sick of", "scandal",
	},
	"sadness": {
		"sad", "disappoint", "heartbroken", "let down", "regret", "upset",
		"unhappy", "miserable", "betrayed",
	},
	"fear": {
		"scared", "afraid", "worried", "dangerous", "unsafe", "terrified",
		"alarming", "hazard", "risk", "warning",
	},
	"joy": {
		"love", "happy", "delighted", "excited", "great", "amazing",
		"fantastic", "thrilled", "impressed",
	},
	"surprise": {
		"surprised", "shocked", "unexpected", "unbelievable", "stunned",
		"can't believe", "cannot believe",
	},
}

// emotionOrder fixes iteration order so analysis is deterministic.
var emotionOrder = []string{"anger", "sadness", "fear", "joy", "surprise"}

func NewLexiconEmotionAnalyzer(log *logger.Logger) *LexiconEmotionAnalyzer {
	matchers := make(map[string]*ahocorasick.Matcher, len(emotionLexicons))
	sizes := make(map[string]int, len(emotionLexicons))
	for emotion, lexicon := range emotionLexicons {
		matchers[emotion] = ahocorasick.NewStringMatcher(lexicon)
		sizes[emotion] = len(lexicon)
	}
	return &LexiconEmotionAnalyzer{matchers: matchers, sizes: sizes, logger: log}
}

func (analyzer *LexiconEmotionAnalyzer) Analyze(_ context.Context, evaluated []models.EvaluatedMention) (EmotionReading, error) {
	if len(evaluated) == 0 {
		return EmotionReading{
			DominantEmotion: "neutral",
			ViralRisk:       models.ViralRiskLow,
			DangerScore:     0,
			TrendSummary:    "No recent mentions to analyze.",
		}, nil
	}

	// Per-mention emotion intensities, tracked alongside recency so the
	// anger trend can compare newest against oldest.
	type reading struct {
		hours  float64
		scores map[string]float64
	}

	readings := make([]reading, 0, len(evaluated))
	totals := make(map[string]float64, len(emotionOrder))

	for _, mention := range evaluated {
		lowered := []byte(strings.ToLower(mention.Text))
		scores := make(map[string]float64, len(emotionOrder))
		for _, emotion := range emotionOrder {
			hits := len(analyzer.matchers[emotion].Match(lowered))
			score := float64(hits) / float64(analyzer.sizes[emotion])
			if score > 1 {
				score = 1
			}
			scores[emotion] = score
			totals[emotion] += score
		}
		readings = append(readings, reading{hours: mention.HoursSincePublished, scores: scores})
	}

	dominant := "neutral"
	var dominantAvg float64
	for _, emotion := range emotionOrder {
		avg := totals[emotion] / float64(len(readings))
		if avg > dominantAvg {
			dominantAvg = avg
			dominant = emotion
		}
	}
	if dominantAvg == 0 {
		dominant = "neutral"
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].hours > readings[j].hours
	})
	angerVelocity := 0.0
	if len(readings) > 1 {
		oldest := readings[0].scores["anger"]
		newest := readings[len(readings)-1].scores["anger"]
		angerVelocity = newest - oldest
	}

	angerAvg := totals["anger"] / float64(len(readings))
	danger := angerAvg * 0.7
	if angerVelocity > 0 {
		danger += angerVelocity * 0.3
	}
	if danger > 1 {
		danger = 1
	}

	viral := models.ViralRiskLow
	if danger > 0.7 {
		viral = models.ViralRiskHigh
	} else if danger > 0.4 {
		viral = models.ViralRiskMedium
	}

	return EmotionReading{
		DominantEmotion: dominant,
		ViralRisk:       viral,
		DangerScore:     danger,
		TrendSummary:    interpretTrend(angerVelocity, dominant),
	}, nil
}

func interpretTrend(angerVelocity float64, dominant string) string {
	switch {
	case angerVelocity > 0.2:
		return "CRITICAL: anger is escalating rapidly; high viral boycott risk."
	case angerVelocity > 0.1:
		return "WARNING: anger levels are rising; monitor closely."
	case dominant == "anger":
		return "ALERT: anger is the dominant emotion; immediate response needed."
	case dominant == "sadness":
		return "WATCH: sadness is dominant and may shift to anger if unaddressed."
	default:
		return "STABLE: emotions are stable or improving."
	}
}
