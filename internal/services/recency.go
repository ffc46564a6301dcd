package services

import (
	"fmt"
	"sort"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

// RecencyEvaluator filters and annotates raw mentions by time window.
// Evaluate is a pure function of its inputs; determinism only depends on
// the caller providing a fixed "now".
type RecencyEvaluator struct {
	config config.PipelineConfig
	logger *logger.Logger
}

func NewRecencyEvaluator(cfg config.PipelineConfig, log *logger.Logger) *RecencyEvaluator {
	return &RecencyEvaluator{config: cfg, logger: log}
}

// Evaluate drops mentions older than now-window, keeps unparseable
// timestamps with time_bucket "unknown" (benefit of the doubt), clamps
// future timestamps to zero hours, and sorts most recent first.
func (evaluator *RecencyEvaluator) Evaluate(mentions []models.Mention, now time.Time, window time.Duration) []models.EvaluatedMention {
	cutoff := now.Add(-window)

	evaluated := make([]models.EvaluatedMention, 0, len(mentions))
	dropped := 0

	for _, mention := range mentions {
		raw := mention.PublishedAt
		if raw == "" {
			// Absent timestamp means published now.
			evaluated = append(evaluated, evaluator.annotate(mention, now, now))
			continue
		}

		publishedAt, err := parseTimestamp(raw)
		if err != nil {
			evaluated = append(evaluated, models.EvaluatedMention{
				Mention:             mention,
				HoursSincePublished: 0,
				IsBreaking:          false,
				TimeBucket:          "unknown",
				FormattedDate:       "date unavailable",
			})
			continue
		}

		if publishedAt.Before(cutoff) {
			dropped++
			continue
		}

		evaluated = append(evaluated, evaluator.annotate(mention, publishedAt, now))
	}

	sort.SliceStable(evaluated, func(i, j int) bool {
		return evaluated[i].HoursSincePublished < evaluated[j].HoursSincePublished
	})

	breaking := 0
	for _, item := range evaluated {
		if item.IsBreaking {
			breaking++
		}
	}

	evaluator.logger.LogService("recency", "evaluate", 0, map[string]interface{}{
		"input":    len(mentions),
		"kept":     len(evaluated),
		"dropped":  dropped,
		"breaking": breaking,
	}, nil)

	return evaluated
}

func (evaluator *RecencyEvaluator) annotate(mention models.Mention, publishedAt, now time.Time) models.EvaluatedMention {
	age := now.Sub(publishedAt)
	if age < 0 {
		// Clock skew: a future timestamp counts as breaking right now.
		return models.EvaluatedMention{
			Mention:             mention,
			HoursSincePublished: 0,
			IsBreaking:          true,
			TimeBucket:          "just now",
			FormattedDate:       formatPublished(publishedAt),
		}
	}

	return models.EvaluatedMention{
		Mention:             mention,
		HoursSincePublished: age.Hours(),
		IsBreaking:          age < evaluator.config.BreakingWindow,
		TimeBucket:          timeBucket(age),
		FormattedDate:       formatPublished(publishedAt),
	}
}

func timeBucket(age time.Duration) string {
	seconds := age.Seconds()
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		minutes := int(seconds / 60)
		return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
	case seconds < 86400:
		hours := int(seconds / 3600)
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	default:
		days := int(seconds / 86400)
		hours := int(seconds/3600) % 24
		return fmt.Sprintf("%d day%s, %d hour%s ago", days, plural(days), hours, plural(hours))
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func formatPublished(t time.Time) string {
	return t.UTC().Format("January 2, 2006 at 3:04 PM UTC")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
