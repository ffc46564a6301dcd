package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisService is the production SessionStore. Analysis state is a JSON
// blob under a per-session key with a TTL; stage transitions are also
// published to a capped per-session stream for external observers.
type RedisService struct {
	client *redis.Client
	config config.RedisConfig
	logger *logger.Logger
}

func NewRedisService(cfg config.RedisConfig, log *logger.Logger) (*RedisService, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	service := &RedisService{
		client: redis.NewClient(opt),
		config: cfg,
		logger: log,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis service initialized",
		"pool_size", cfg.PoolSize,
		"session_ttl", cfg.SessionTTL.String(),
	)

	return service, nil
}

func (service *RedisService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return service.client.Ping(ctx).Err()
}

func stateKey(sessionID string) string {
	return fmt.Sprintf("analysis:%s:state", sessionID)
}

func updatesStream(sessionID string) string {
	return fmt.Sprintf("analysis:%s:updates", sessionID)
}

// SaveState persists the full state blob verbatim and refreshes the TTL.
func (service *RedisService) SaveState(ctx context.Context, state *models.AnalysisState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return models.NewInternalError("STATE_MARSHAL_FAILED", "failed to serialize analysis state").WithCause(err)
	}

	if err := service.client.Set(ctx, stateKey(state.SessionID), payload, service.config.SessionTTL).Err(); err != nil {
		return models.WrapExternalError("REDIS", err).WithMetadata("session_id", state.SessionID)
	}

	service.logger.Debug("analysis state saved",
		"session_id", state.SessionID,
		"stage", string(state.Stage),
		"bytes", len(payload),
	)
	return nil
}

func (service *RedisService) LoadState(ctx context.Context, sessionID string) (*models.AnalysisState, error) {
	payload, err := service.client.Get(ctx, stateKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, models.ErrSessionNotFound.WithMetadata("session_id", sessionID)
	}
	if err != nil {
		return nil, models.WrapExternalError("REDIS", err).WithMetadata("session_id", sessionID)
	}

	var state models.AnalysisState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, models.NewInternalError("STATE_UNMARSHAL_FAILED", "failed to deserialize analysis state").WithCause(err)
	}
	return &state, nil
}

func (service *RedisService) DeleteState(ctx context.Context, sessionID string) error {
	deleted, err := service.client.Del(ctx, stateKey(sessionID), updatesStream(sessionID)).Result()
	if err != nil {
		return models.WrapExternalError("REDIS", err).WithMetadata("session_id", sessionID)
	}
	if deleted == 0 {
		return models.ErrSessionNotFound.WithMetadata("session_id", sessionID)
	}
	return nil
}

// PublishStageUpdate appends a stage transition to the session's update
// stream. Publication is observational only; failures are logged and
// swallowed so a down stream never stalls the pipeline.
func (service *RedisService) PublishStageUpdate(ctx context.Context, sessionID string, stage models.Stage, message string) {
	err := service.client.XAdd(ctx, &redis.XAddArgs{
		Stream: updatesStream(sessionID),
		MaxLen: 1024,
		Approx: true,
		Values: map[string]interface{}{
			"stage":     string(stage),
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		service.logger.WithError(err).Warn("failed to publish stage update",
			"session_id", sessionID, "stage", string(stage))
	}
}

func (service *RedisService) HealthCheck(ctx context.Context) error {
	if err := service.client.Ping(ctx).Err(); err != nil {
		return models.WrapExternalError("REDIS", err)
	}
	return nil
}

func (service *RedisService) Close() error {
	service.logger.Info("closing Redis service")
	return service.client.Close()
}
