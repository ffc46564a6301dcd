package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/cloudflare/ahocorasick"
)

// CorrectiveRetriever runs the per-category semantic queries with a
// corrective step: when the first round of results fails a cheap
// crisis-keyword relevance gate, the query is rewritten once with
// category-specific expansion phrases and re-run. One refinement per
// category per run, never more.
type CorrectiveRetriever struct {
	sentiment  SentimentScorer
	verifier   TextClassifier
	crisisGate *ahocorasick.Matcher
	config     config.PipelineConfig
	logger     *logger.Logger
}

// crisisKeywords is a hand-curated proxy filter, independent of the
// embedding model's own similarity score.
var crisisKeywords = []string{
	"crisis", "problem", "issue", "complaint", "angry", "frustrated",
	"bug", "crash", "safety", "danger", "hate", "toxic", "fail",
}

var categoryQueries = map[models.RiskCategory]string{
	models.CategoryHateSpeech:         "hate speech, offensive language, discriminatory content, harassment, toxic behavior, furious customers",
	models.CategoryProductFrustration: "customer frustration, disappointed customers, angry users, complaints, dissatisfaction, terrible experience",
	models.CategoryTechnicalBugs:      "technical bugs, software crashes, app freezing, glitches, system errors, not working, broken, failure",
	models.CategorySafetyRisks:        "safety concerns, dangerous products, fire hazards, injury risks, health problems, overheating, hazardous",
}

var refinedQueries = map[models.RiskCategory]string{
	models.CategoryHateSpeech:         "%s controversy scandal backlash",
	models.CategoryProductFrustration: "%s customer complaints reviews problems",
	models.CategoryTechnicalBugs:      "%s software error crash failure report",
	models.CategorySafetyRisks:        "%s safety recall warning danger hazard",
}

// NewCorrectiveRetriever builds a retriever. verifier may be nil; the
// stricter negative-sentiment verification is best-effort only.
func NewCorrectiveRetriever(sentiment SentimentScorer, verifier TextClassifier, cfg config.PipelineConfig, log *logger.Logger) *CorrectiveRetriever {
	return &CorrectiveRetriever{
		sentiment:  sentiment,
		verifier:   verifier,
		crisisGate: ahocorasick.NewStringMatcher(crisisKeywords),
		config:     cfg,
		logger:     log,
	}
}

// RetrieveCategory returns sentiment-labeled evidence for one risk
// category, plus whether the corrective refinement fired. An index with
// zero documents yields empty evidence and no error: that is "no
// findings", not a failure.
func (retriever *CorrectiveRetriever) RetrieveCategory(ctx context.Context, index *RetrievalIndex, category models.RiskCategory, topic string) ([]models.Evidence, bool, error) {
	startTime := time.Now()

	if index.Size() == 0 {
		return nil, false, nil
	}

	baseQuery, ok := categoryQueries[category]
	if !ok {
		return nil, false, models.NewInternalError("UNKNOWN_CATEGORY", fmt.Sprintf("no query for category %q", category))
	}

	results, err := index.Search(ctx, baseQuery, retriever.config.TopK)
	if err != nil {
		return nil, false, err
	}

	relevant := retriever.isRelevant(results)
	refined := false

	if !relevant && len(results) > 0 {
		refinedQuery := fmt.Sprintf(refinedQueries[category], topic)
		retriever.logger.Debug("low relevance, refining query",
			"category", string(category), "refined_query", refinedQuery)

		refinedResults, err := index.Search(ctx, refinedQuery, retriever.config.TopK)
		if err == nil && len(refinedResults) > 0 {
			results = refinedResults
		}
		refined = true
	}

	evidence := make([]models.Evidence, 0, len(results))
	for _, chunk := range results {
		label, score := retriever.labelChunk(ctx, chunk.Text)
		evidence = append(evidence, models.Evidence{
			Category:       category,
			SourceTitle:    chunk.SourceTitle,
			SourceURL:      chunk.SourceURL,
			TimeBucket:     chunk.TimeBucket,
			SentimentLabel: label,
			SentimentScore: score,
			Snippet:        truncate(chunk.Text, retriever.config.SnippetLimit),
			Relevant:       relevant,
		})
	}

	retriever.logger.LogService("crag", "retrieve_category", time.Since(startTime), map[string]interface{}{
		"category": string(category),
		"evidence": len(evidence),
		"relevant": relevant,
		"refined":  refined,
	}, nil)

	return evidence, refined, nil
}

// isRelevant computes the fraction of chunks containing at least one
// crisis keyword. Empty result sets are never relevant.
func (retriever *CorrectiveRetriever) isRelevant(results []ScoredChunk) bool {
	if len(results) == 0 {
		return false
	}

	hits := 0
	for _, chunk := range results {
		if len(retriever.crisisGate.Match([]byte(strings.ToLower(chunk.Text)))) > 0 {
			hits++
		}
	}

	ratio := float64(hits) / float64(len(results))
	return ratio >= retriever.config.RelevanceThreshold
}

// labelChunk scores a chunk's sentiment and optionally verifies negative
// labels with the external classifier. Verification is fail-open: any
// classifier error keeps the cheaper sentiment label unchanged.
func (retriever *CorrectiveRetriever) labelChunk(ctx context.Context, text string) (models.SentimentLabel, float64) {
	score, err := retriever.sentiment.Score(ctx, text)
	if err != nil {
		retriever.logger.WithError(err).Warn("sentiment scoring failed, labeling neutral")
		return models.SentimentNeutral, 0
	}

	label := LabelSentiment(score)
	if label != models.SentimentNegative || retriever.verifier == nil {
		return label, score
	}

	question := "Is this text expressing negative sentiment, frustration, or criticism towards the brand or product? Answer only YES or NO."
	confirmed, err := retriever.verifier.Classify(ctx, truncate(text, 500), question)
	if err != nil {
		retriever.logger.WithError(err).Debug("negative-sentiment verification unavailable, keeping label")
		return label, score
	}
	if !confirmed {
		return models.SentimentNeutral, 0
	}
	return label, score
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}
