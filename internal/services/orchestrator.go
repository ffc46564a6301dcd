package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

// StagePublisher receives stage transition notifications. Publication is
// observational; implementations must never block the pipeline.
type StagePublisher interface {
	PublishStageUpdate(ctx context.Context, sessionID string, stage models.Stage, message string)
}

// Orchestrator drives the analysis pipeline: the one-shot analysis phase
// (PLANNED through ANALYZED) and the iterative strategy loop (DRAFTED
// through FINALIZED). Sessions are independent; concurrent runs share
// only the injected services, all of which tolerate parallel calls.
type Orchestrator struct {
	store        SessionStore
	publisher    StagePublisher
	fetcher      *MentionFetcher
	recency      *RecencyEvaluator
	indexBuilder *IndexBuilder
	retriever    *CorrectiveRetriever
	scorer       *RiskScorer
	social       *SocialReplyDrafter
	drafter      *StrategyDrafter
	critic       *CriticReviewer

	clock  Clock
	config config.PipelineConfig
	logger *logger.Logger

	activeSessions sync.Map // session_id -> context.CancelFunc
}

func NewOrchestrator(
	store SessionStore,
	fetcher *MentionFetcher,
	indexBuilder *IndexBuilder,
	retriever *CorrectiveRetriever,
	scorer *RiskScorer,
	social *SocialReplyDrafter,
	drafter *StrategyDrafter,
	critic *CriticReviewer,
	cfg config.PipelineConfig,
	log *logger.Logger,
) *Orchestrator {
	orchestrator := &Orchestrator{
		store:        store,
		fetcher:      fetcher,
		recency:      NewRecencyEvaluator(cfg, log),
		indexBuilder: indexBuilder,
		retriever:    retriever,
		scorer:       scorer,
		social:       social,
		drafter:      drafter,
		critic:       critic,
		clock:        SystemClock{},
		config:       cfg,
		logger:       log,
	}
	if publisher, ok := store.(StagePublisher); ok {
		orchestrator.publisher = publisher
	}
	return orchestrator
}

// WithClock swaps the time source. Tests use this to pin "now".
func (orchestrator *Orchestrator) WithClock(clock Clock) *Orchestrator {
	orchestrator.clock = clock
	return orchestrator
}

// StartAnalysis runs the analysis phase for one topic and returns the
// state at ANALYZED. Input validation errors are the only errors raised
// before any stage runs; after PLANNED, external failures degrade
// rather than abort.
func (orchestrator *Orchestrator) StartAnalysis(ctx context.Context, topic string, mentions []models.Mention) (*models.AnalysisState, error) {
	startTime := time.Now()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, models.NewInvalidInputError("EMPTY_TOPIC", "topic must not be empty")
	}
	if len(mentions) == 0 {
		return nil, models.NewInvalidInputError("NO_MENTIONS", "at least one mention is required")
	}
	for i, mention := range mentions {
		if strings.TrimSpace(mention.Text) == "" && strings.TrimSpace(mention.URL) == "" {
			return nil, models.NewInvalidInputError("EMPTY_MENTION",
				"mention must carry text or a URL").WithMetadata("index", i)
		}
	}

	now := orchestrator.clock.Now()
	state := models.NewAnalysisState(topic, dedupeMentions(mentions), now)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	orchestrator.activeSessions.Store(state.SessionID, cancel)
	defer orchestrator.activeSessions.Delete(state.SessionID)

	orchestrator.logger.LogWorkflow(state.SessionID, topic, "analysis_started", 0, nil)

	if err := orchestrator.runAnalysisStages(sessionCtx, state, now); err != nil {
		orchestrator.logger.LogWorkflow(state.SessionID, topic, "analysis_failed", time.Since(startTime), err)
		return state, err
	}

	orchestrator.logger.LogWorkflow(state.SessionID, topic, "analysis_completed", time.Since(startTime), nil)
	return state, nil
}

func (orchestrator *Orchestrator) runAnalysisStages(ctx context.Context, state *models.AnalysisState, now time.Time) error {
	// SEARCHED: fill in missing mention bodies, best effort.
	if err := orchestrator.checkCancelled(ctx, state); err != nil {
		return err
	}
	stageStart := time.Now()
	if orchestrator.fetcher != nil {
		state.Mentions = orchestrator.fetcher.FillMissingText(ctx, state.Mentions)
	}
	orchestrator.transition(ctx, state, models.StageSearched, "mention content collected")
	orchestrator.logger.LogStage(state.SessionID, string(models.StageSearched), time.Since(stageStart), map[string]interface{}{
		"mentions": len(state.Mentions),
	}, nil)

	// FILTERED: recency window.
	if err := orchestrator.checkCancelled(ctx, state); err != nil {
		return err
	}
	stageStart = time.Now()
	state.Evaluated = orchestrator.recency.Evaluate(state.Mentions, now, orchestrator.config.RetentionWindow)
	orchestrator.transition(ctx, state, models.StageFiltered, "mentions filtered by recency")
	orchestrator.logger.LogStage(state.SessionID, string(models.StageFiltered), time.Since(stageStart), map[string]interface{}{
		"kept": len(state.Evaluated),
	}, nil)

	// ANALYZED: retrieval, risk scoring and reply drafting.
	if err := orchestrator.checkCancelled(ctx, state); err != nil {
		return err
	}
	stageStart = time.Now()

	index, err := orchestrator.indexBuilder.Build(ctx, state.Evaluated)
	if err != nil {
		// A dead vector store means no evidence, not a dead session.
		orchestrator.logger.WithError(err).Warn("index build failed, continuing without evidence",
			"session_id", state.SessionID)
		index = nil
	}

	for _, category := range models.AllRiskCategories {
		if index == nil {
			state.Evidence[category] = nil
			continue
		}
		evidence, refined, err := orchestrator.retriever.RetrieveCategory(ctx, index, category, state.Topic)
		if err != nil {
			orchestrator.logger.WithError(err).Warn("category retrieval failed, recording no findings",
				"session_id", state.SessionID, "category", string(category))
			continue
		}
		state.Evidence[category] = evidence
		state.Refined[category] = refined
	}

	risk, err := orchestrator.scorer.Score(ctx, state.Evaluated)
	if err != nil {
		return err
	}
	state.Risk = &risk

	if orchestrator.social != nil {
		state.SocialReplies = orchestrator.social.DraftReplies(ctx, state.Topic, state.Evaluated)
	}

	orchestrator.transition(ctx, state, models.StageAnalyzed, "risk analysis completed")
	orchestrator.logger.LogStage(state.SessionID, string(models.StageAnalyzed), time.Since(stageStart), map[string]interface{}{
		"evidence":   state.TotalEvidence(),
		"risk_score": risk.RiskScore,
		"risk_level": string(risk.RiskLevel),
	}, nil)

	return nil
}

// RunStrategyLoop drafts, critiques and revises the strategy report
// until the critic approves or the revision bound forces approval. The
// session must have completed analysis; a finalized session is returned
// unchanged.
func (orchestrator *Orchestrator) RunStrategyLoop(ctx context.Context, sessionID string) (*models.AnalysisState, error) {
	startTime := time.Now()

	state, err := orchestrator.store.LoadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if state.IsFinalized() {
		return state, nil
	}
	if stageRank(state.Stage) < stageRank(models.StageAnalyzed) {
		return nil, models.NewInvalidInputError("ANALYSIS_INCOMPLETE",
			"strategy drafting requires a completed analysis").WithMetadata("stage", string(state.Stage))
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	orchestrator.activeSessions.Store(state.SessionID, cancel)
	defer orchestrator.activeSessions.Delete(state.SessionID)

	for {
		if err := orchestrator.checkCancelled(sessionCtx, state); err != nil {
			return state, err
		}

		draft, err := orchestrator.drafter.Draft(sessionCtx, state)
		if err != nil {
			return state, err
		}
		state.DraftReport = draft
		orchestrator.transition(sessionCtx, state, models.StageDrafted, "strategy draft written")

		approved, feedback, err := orchestrator.critic.Review(sessionCtx, state)
		if err != nil {
			return state, err
		}
		// Latest critique only; earlier feedback is superseded.
		state.CriticFeedback = feedback
		state.CriticApproved = approved
		orchestrator.transition(sessionCtx, state, models.StageCritiqued, "draft reviewed")

		if approved {
			break
		}

		state.RevisionCount++
		orchestrator.transition(sessionCtx, state, models.StageRevising, "draft rejected, revising")
	}

	state.MarkFinalized(orchestrator.clock.Now())
	orchestrator.transition(ctx, state, models.StageFinalized, "strategy report finalized")

	orchestrator.logger.LogWorkflow(state.SessionID, state.Topic, "strategy_finalized", time.Since(startTime), nil)
	return state, nil
}

// ExecuteWorkflow runs the full pipeline end to end.
func (orchestrator *Orchestrator) ExecuteWorkflow(ctx context.Context, topic string, mentions []models.Mention) (*models.AnalysisState, error) {
	state, err := orchestrator.StartAnalysis(ctx, topic, mentions)
	if err != nil {
		return state, err
	}
	return orchestrator.RunStrategyLoop(ctx, state.SessionID)
}

func (orchestrator *Orchestrator) GetSession(ctx context.Context, sessionID string) (*models.AnalysisState, error) {
	return orchestrator.store.LoadState(ctx, sessionID)
}

func (orchestrator *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	orchestrator.CancelSession(sessionID)
	return orchestrator.store.DeleteState(ctx, sessionID)
}

// CancelSession aborts an in-flight session. Persisted state survives;
// only the running computation stops.
func (orchestrator *Orchestrator) CancelSession(sessionID string) bool {
	if cancel, ok := orchestrator.activeSessions.Load(sessionID); ok {
		cancel.(context.CancelFunc)()
		orchestrator.activeSessions.Delete(sessionID)
		return true
	}
	return false
}

func (orchestrator *Orchestrator) GetActiveSessionsCount() int {
	count := 0
	orchestrator.activeSessions.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (orchestrator *Orchestrator) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"active_sessions": orchestrator.GetActiveSessionsCount(),
		"max_revisions":   orchestrator.config.MaxRevisions,
		"critic_mode":     orchestrator.config.CriticMode,
		"retention_hours": orchestrator.config.RetentionWindow.Hours(),
	}
}

func (orchestrator *Orchestrator) HealthCheck(ctx context.Context) error {
	if checker, ok := orchestrator.store.(interface{ HealthCheck(context.Context) error }); ok {
		return checker.HealthCheck(ctx)
	}
	return nil
}

// Close cancels all in-flight sessions.
func (orchestrator *Orchestrator) Close() error {
	orchestrator.activeSessions.Range(func(key, value interface{}) bool {
		value.(context.CancelFunc)()
		orchestrator.activeSessions.Delete(key)
		return true
	})
	orchestrator.logger.Info("orchestrator closed")
	return nil
}

// transition advances the stage, persists best-effort and notifies any
// publisher. Persistence failure degrades to in-memory continuation.
func (orchestrator *Orchestrator) transition(ctx context.Context, state *models.AnalysisState, stage models.Stage, message string) {
	state.Stage = stage

	if err := orchestrator.store.SaveState(ctx, state); err != nil {
		orchestrator.logger.WithError(err).Warn("state persistence failed, continuing in memory",
			"session_id", state.SessionID, "stage", string(stage))
	}
	if orchestrator.publisher != nil {
		orchestrator.publisher.PublishStageUpdate(ctx, state.SessionID, stage, message)
	}
}

func (orchestrator *Orchestrator) checkCancelled(ctx context.Context, state *models.AnalysisState) error {
	select {
	case <-ctx.Done():
		return models.NewCancelledError("SESSION_CANCELLED", "analysis session cancelled").
			WithCause(ctx.Err()).WithMetadata("session_id", state.SessionID)
	default:
		return nil
	}
}

// dedupeMentions drops duplicates by dedup key, keeping first occurrence.
func dedupeMentions(mentions []models.Mention) []models.Mention {
	seen := make(map[string]bool, len(mentions))
	deduped := make([]models.Mention, 0, len(mentions))
	for _, mention := range mentions {
		key := mention.DedupKey()
		if key != "" && seen[key] {
			continue
		}
		if key != "" {
			seen[key] = true
		}
		deduped = append(deduped, mention)
	}
	return deduped
}

var stageOrder = map[models.Stage]int{
	models.StagePlanned:   0,
	models.StageSearched:  1,
	models.StageFiltered:  2,
	models.StageAnalyzed:  3,
	models.StageDrafted:   4,
	models.StageCritiqued: 5,
	models.StageRevising:  6,
	models.StageFinalized: 7,
}

func stageRank(stage models.Stage) int {
	return stageOrder[stage]
}
