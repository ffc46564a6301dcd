package services

import (
	"context"
	"strings"

	"brandshield-pipeline/internal/pkg/logger"

	"github.com/cloudflare/ahocorasick"
)

// LexiconSentimentScorer is the keyword-only sentiment primitive: an
// Aho-Corasick scan over fixed polarity lexicons producing a compound
// score in [-1, 1]. It is fully deterministic and serves as the mandated
// degraded mode when no model-backed scorer is wired in.
type LexiconSentimentScorer struct {
	negative *ahocorasick.Matcher
	positive *ahocorasick.Matcher
	logger   *logger.Logger
}

var negativeLexicon = []string{
	"angry", "furious", "frustrat", "disappoint", "terrible", "horrible",
	"awful", "worst", "hate", "broken", "crash", "bug", "glitch", "fail",
	"failure", "refund", "scam", "dangerous", "unsafe", "hazard", "recall",
	"overheat", "fire", "injury", "useless", "unusable", "garbage",
	"boycott", "lawsuit", "outrage", "complaint", "defect", "faulty",
	"misleading", "ripoff", "never again", "waste of money", "stopped working",
	"not working", "does not work", "doesn't work",
}

var positiveLexicon = []string{
	"love", "great", "excellent", "amazing", "fantastic", "wonderful",
	"awesome", "best", "impressed", "reliable", "recommend", "happy",
	"satisfied", "delighted", "perfect", "smooth", "flawless", "works well",
	"well made", "good value", "thank you", "brilliant", "solid",
}

func NewLexiconSentimentScorer(log *logger.Logger) *LexiconSentimentScorer {
	return &LexiconSentimentScorer{
		negative: ahocorasick.NewStringMatcher(negativeLexicon),
		positive: ahocorasick.NewStringMatcher(positiveLexicon),
		logger:   log,
	}
}

// Score counts distinct lexicon hits in the lowercased text and returns
// (pos - neg) / (pos + neg), or 0 when neither polarity matches.
func (scorer *LexiconSentimentScorer) Score(_ context.Context, text string) (float64, error) {
	lowered := []byte(strings.ToLower(text))

	neg := len(scorer.negative.Match(lowered))
	pos := len(scorer.positive.Match(lowered))

	if neg+pos == 0 {
		return 0, nil
	}
	return float64(pos-neg) / float64(pos+neg), nil
}
