package models

import (
	"time"

	"github.com/google/uuid"
)

// Mention is one ingested piece of text about the monitored topic.
// Immutable once created; ID (falling back to URL) is the dedup key.
type Mention struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	SourcePlatform string `json:"source_platform,omitempty"`
	// PublishedAt is the raw RFC3339 timestamp as received. Empty means
	// "published now"; unparseable values are kept, not dropped.
	PublishedAt string `json:"published_at,omitempty"`
	Engagement  int    `json:"engagement,omitempty"`
}

// DedupKey returns the identity used to collapse duplicate mentions.
func (m Mention) DedupKey() string {
	if m.ID != "" {
		return m.ID
	}
	return m.URL
}

// EvaluatedMention is a Mention annotated with recency metadata.
type EvaluatedMention struct {
	Mention
	HoursSincePublished float64 `json:"hours_since_published"`
	IsBreaking          bool    `json:"is_breaking"`
	TimeBucket          string  `json:"time_bucket"`
	FormattedDate       string  `json:"formatted_date"`
}

type RiskCategory string

const (
	CategoryHateSpeech         RiskCategory = "hate_speech"
	CategoryProductFrustration RiskCategory = "product_frustration"
	CategoryTechnicalBugs      RiskCategory = "technical_bugs"
	CategorySafetyRisks        RiskCategory = "safety_risks"
)

// AllRiskCategories fixes the retrieval and reporting order.
var AllRiskCategories = []RiskCategory{
	CategoryHateSpeech,
	CategoryProductFrustration,
	CategoryTechnicalBugs,
	CategorySafetyRisks,
}

// Title renders the category for reports, e.g. "Safety Risks".
func (c RiskCategory) Title() string {
	switch c {
	case CategoryHateSpeech:
		return "Hate Speech"
	case CategoryProductFrustration:
		return "Product Frustration"
	case CategoryTechnicalBugs:
		return "Technical Bugs"
	case CategorySafetyRisks:
		return "Safety Risks"
	}
	return string(c)
}

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Evidence is a retrieved, sentiment-labeled snippet supporting a
// risk-category finding.
type Evidence struct {
	Category       RiskCategory   `json:"category"`
	SourceTitle    string         `json:"source_title"`
	SourceURL      string         `json:"source_url"`
	TimeBucket     string         `json:"time_bucket"`
	SentimentLabel SentimentLabel `json:"sentiment_label"`
	SentimentScore float64        `json:"sentiment_score"`
	Snippet        string         `json:"snippet"`
	Relevant       bool           `json:"relevant"`
}

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

type ViralRisk string

const (
	ViralRiskLow    ViralRisk = "LOW"
	ViralRiskMedium ViralRisk = "MEDIUM"
	ViralRiskHigh   ViralRisk = "HIGH"
)

// RiskAssessment is computed fresh once per analysis run, never
// partially updated.
type RiskAssessment struct {
	RiskScore       float64   `json:"risk_score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	VelocityPct     float64   `json:"velocity_pct"`
	DominantEmotion string    `json:"dominant_emotion"`
	ViralRisk       ViralRisk `json:"viral_risk"`
	NegativeCount   int       `json:"negative_count"`
	PositiveCount   int       `json:"positive_count"`
	NeutralCount    int       `json:"neutral_count"`
	RecentNegatives int       `json:"recent_negatives"`
	PastNegatives   int       `json:"past_negatives"`
}

// SocialReply is a drafted response to one negative mention, held for
// human review before the strategy phase.
type SocialReply struct {
	MentionID   string `json:"mention_id"`
	SourceTitle string `json:"source_title"`
	Excerpt     string `json:"excerpt"`
	DraftReply  string `json:"draft_reply"`
	Status      string `json:"status"`
}

type Stage string

const (
	StagePlanned   Stage = "PLANNED"
	StageSearched  Stage = "SEARCHED"
	StageFiltered  Stage = "FILTERED"
	StageAnalyzed  Stage = "ANALYZED"
	StageDrafted   Stage = "DRAFTED"
	StageCritiqued Stage = "CRITIQUED"
	StageRevising  Stage = "REVISING"
	StageFinalized Stage = "FINALIZED"
)

// AnalysisState is the single record threaded through the pipeline for
// one topic/session. Stages append fields; earlier data is never
// deleted. Once FinalReport is set the state is treated as immutable.
type AnalysisState struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Stage     Stage  `json:"stage"`

	Mentions  []Mention          `json:"mentions"`
	Evaluated []EvaluatedMention `json:"evaluated"`

	Evidence map[RiskCategory][]Evidence `json:"evidence"`
	Refined  map[RiskCategory]bool       `json:"refined"`

	Risk          *RiskAssessment `json:"risk,omitempty"`
	SocialReplies []SocialReply   `json:"social_replies,omitempty"`

	DraftReport    string `json:"draft_report,omitempty"`
	CriticFeedback string `json:"critic_feedback,omitempty"`
	CriticApproved bool   `json:"critic_approved"`
	RevisionCount  int    `json:"revision_count"`
	FinalReport    string `json:"final_report,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func NewAnalysisState(topic string, mentions []Mention, now time.Time) *AnalysisState {
	return &AnalysisState{
		SessionID: uuid.New().String(),
		Topic:     topic,
		Stage:     StagePlanned,
		Mentions:  mentions,
		Evaluated: []EvaluatedMention{},
		Evidence:  make(map[RiskCategory][]Evidence),
		Refined:   make(map[RiskCategory]bool),
		StartTime: now,
	}
}

func (state *AnalysisState) IsFinalized() bool {
	return state.Stage == StageFinalized && state.FinalReport != ""
}

func (state *AnalysisState) MarkFinalized(now time.Time) {
	state.Stage = StageFinalized
	state.FinalReport = state.DraftReport
	end := now
	state.EndTime = &end
}

func (state *AnalysisState) Duration(now time.Time) time.Duration {
	if state.EndTime != nil {
		return state.EndTime.Sub(state.StartTime)
	}
	return now.Sub(state.StartTime)
}

// TotalEvidence counts evidence items across all categories.
func (state *AnalysisState) TotalEvidence() int {
	total := 0
	for _, items := range state.Evidence {
		total += len(items)
	}
	return total
}
