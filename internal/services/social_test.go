package services

import (
	"context"
	"errors"
	"testing"

	"brandshield-pipeline/internal/models"
)

func negativeMention(id string, hours float64) models.EvaluatedMention {
	return models.EvaluatedMention{
		Mention:             models.Mention{ID: id, Title: "post " + id, Text: "this is terrible, awful product, broken and useless"},
		HoursSincePublished: hours,
		TimeBucket:          "recently",
	}
}

func TestDraftRepliesSelectsRecentNegatives(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxSocialReplies = 2
	drafter := NewSocialReplyDrafter(NewLexiconSentimentScorer(testLogger(t)), nil, cfg, testLogger(t))

	evaluated := []models.EvaluatedMention{
		negativeMention("oldest", 40),
		negativeMention("newest", 1),
		negativeMention("middle", 10),
		{Mention: models.Mention{ID: "happy", Text: "I love it, excellent product"}, HoursSincePublished: 0.5},
	}

	replies := drafter.DraftReplies(context.Background(), "Acme Phone", evaluated)

	if len(replies) != 2 {
		t.Fatalf("expected the cap of 2 replies, got %d", len(replies))
	}
	if replies[0].MentionID != "newest" || replies[1].MentionID != "middle" {
		t.Errorf("expected newest-first selection, got %s then %s",
			replies[0].MentionID, replies[1].MentionID)
	}
	for _, reply := range replies {
		if reply.Status != "draft" {
			t.Errorf("reply for %s has status %q, want draft", reply.MentionID, reply.Status)
		}
		if reply.DraftReply == "" {
			t.Errorf("reply for %s is empty", reply.MentionID)
		}
	}
}

func TestDraftRepliesSkipsPositiveMentions(t *testing.T) {
	drafter := NewSocialReplyDrafter(NewLexiconSentimentScorer(testLogger(t)), nil, testPipelineConfig(), testLogger(t))

	replies := drafter.DraftReplies(context.Background(), "Acme Phone", []models.EvaluatedMention{
		{Mention: models.Mention{ID: "a", Text: "wonderful experience, highly recommend"}, HoursSincePublished: 1},
		{Mention: models.Mention{ID: "b", Text: "the store opens at nine"}, HoursSincePublished: 2},
	})

	if len(replies) != 0 {
		t.Fatalf("no negative mentions, expected no replies, got %d", len(replies))
	}
}

func TestDraftRepliesBoundsReplyLength(t *testing.T) {
	long := &stubGenerator{output: string(make([]byte, 400))}
	drafter := NewSocialReplyDrafter(NewLexiconSentimentScorer(testLogger(t)), long, testPipelineConfig(), testLogger(t))

	replies := drafter.DraftReplies(context.Background(), "Acme Phone", []models.EvaluatedMention{
		negativeMention("m1", 1),
	})

	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	if len(replies[0].DraftReply) > 280 {
		t.Errorf("reply is %d chars, must fit in 280", len(replies[0].DraftReply))
	}
}

func TestDraftRepliesGeneratorFailureUsesCannedReply(t *testing.T) {
	generator := &stubGenerator{err: errors.New("model down")}
	drafter := NewSocialReplyDrafter(NewLexiconSentimentScorer(testLogger(t)), generator, testPipelineConfig(), testLogger(t))

	replies := drafter.DraftReplies(context.Background(), "Acme Phone", []models.EvaluatedMention{
		negativeMention("m1", 1),
	})

	if len(replies) != 1 {
		t.Fatalf("generator failure must not drop the mention, got %d replies", len(replies))
	}
	if replies[0].DraftReply == "" {
		t.Error("canned reply expected when generation fails")
	}
}
