package services

import (
	"context"
	"time"

	"brandshield-pipeline/internal/models"
)

// External capabilities the pipeline depends on. All are swappable so the
// test suite can inject deterministic stubs, and all implementations must
// be safe for concurrent use across analysis sessions.

type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type VectorStore interface {
	Index(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Query(ctx context.Context, vector []float64, k int) ([]ScoredChunk, error)
	Size() int
}

// SentimentScorer returns a compound score in [-1, 1].
type SentimentScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

type EmotionReading struct {
	DominantEmotion string
	ViralRisk       models.ViralRisk
	DangerScore     float64
	TrendSummary    string
}

type EmotionAnalyzer interface {
	Analyze(ctx context.Context, evaluated []models.EvaluatedMention) (EmotionReading, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextClassifier answers a yes/no question about a piece of text.
type TextClassifier interface {
	Classify(ctx context.Context, text, question string) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SessionStore persists the serialized AnalysisState blob keyed by
// session id. The persisted shape retains every field verbatim so a
// resumed session reproduces identical downstream decisions.
type SessionStore interface {
	SaveState(ctx context.Context, state *models.AnalysisState) error
	LoadState(ctx context.Context, sessionID string) (*models.AnalysisState, error)
	DeleteState(ctx context.Context, sessionID string) error
}

const (
	negativeSentimentCutoff = -0.05
	positiveSentimentCutoff = 0.05
)

// LabelSentiment maps a compound score onto the three-way label used
// throughout the pipeline.
func LabelSentiment(score float64) models.SentimentLabel {
	switch {
	case score < negativeSentimentCutoff:
		return models.SentimentNegative
	case score > positiveSentimentCutoff:
		return models.SentimentPositive
	default:
		return models.SentimentNeutral
	}
}
