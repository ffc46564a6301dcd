package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

// SocialReplyDrafter prepares per-mention response drafts for the most
// recent negative mentions. Drafts are held for human review; nothing is
// ever posted from here.
type SocialReplyDrafter struct {
	sentiment SentimentScorer
	generator TextGenerator
	config    config.PipelineConfig
	logger    *logger.Logger
}

// NewSocialReplyDrafter builds a drafter. generator may be nil; every
// reply then uses the canned acknowledgment.
func NewSocialReplyDrafter(sentiment SentimentScorer, generator TextGenerator, cfg config.PipelineConfig, log *logger.Logger) *SocialReplyDrafter {
	return &SocialReplyDrafter{
		sentiment: sentiment,
		generator: generator,
		config:    cfg,
		logger:    log,
	}
}

// DraftReplies selects the most recent negative mentions, newest first,
// and drafts a reply for each up to the configured cap. Generation
// failures degrade to the canned reply rather than dropping the mention.
func (drafter *SocialReplyDrafter) DraftReplies(ctx context.Context, topic string, evaluated []models.EvaluatedMention) []models.SocialReply {
	startTime := time.Now()

	negatives := make([]models.EvaluatedMention, 0, len(evaluated))
	for _, mention := range evaluated {
		score, err := drafter.sentiment.Score(ctx, mention.Text)
		if err != nil {
			continue
		}
		if LabelSentiment(score) == models.SentimentNegative {
			negatives = append(negatives, mention)
		}
	}

	sort.SliceStable(negatives, func(i, j int) bool {
		return negatives[i].HoursSincePublished < negatives[j].HoursSincePublished
	})

	limit := drafter.config.MaxSocialReplies
	if limit > 0 && len(negatives) > limit {
		negatives = negatives[:limit]
	}

	replies := make([]models.SocialReply, 0, len(negatives))
	for _, mention := range negatives {
		replies = append(replies, models.SocialReply{
			MentionID:   mention.DedupKey(),
			SourceTitle: mention.Title,
			Excerpt:     truncate(mention.Text, 160),
			DraftReply:  drafter.draftOne(ctx, topic, mention),
			Status:      "draft",
		})
	}

	drafter.logger.LogService("social", "draft_replies", time.Since(startTime), map[string]interface{}{
		"candidates": len(evaluated),
		"negatives":  len(negatives),
		"drafted":    len(replies),
	}, nil)

	return replies
}

func (drafter *SocialReplyDrafter) draftOne(ctx context.Context, topic string, mention models.EvaluatedMention) string {
	if drafter.generator == nil {
		return cannedReply(topic)
	}

	prompt := fmt.Sprintf(
		"You are the social media voice of %s responding to an unhappy customer.\n\n"+
			"Their post (%s):\n%s\n\n"+
			"Write a single empathetic reply under 280 characters. Acknowledge the specific problem, "+
			"do not promise any outcome, do not argue, and invite them to continue via direct message.",
		topic, mention.TimeBucket, truncate(mention.Text, 500))

	reply, err := drafter.generator.Generate(ctx, prompt)
	if err != nil {
		drafter.logger.WithError(err).Warn("reply generation unavailable, using canned reply",
			"mention_id", mention.DedupKey())
		return cannedReply(topic)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || len(reply) > 280 {
		return cannedReply(topic)
	}
	return reply
}

func cannedReply(topic string) string {
	return fmt.Sprintf(
		"We're sorry to hear about your experience with %s. We take this seriously and want to make it right. Please send us a direct message with the details so our team can help.",
		topic)
}
