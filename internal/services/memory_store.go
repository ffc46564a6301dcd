package services

import (
	"context"
	"encoding/json"
	"sync"

	"brandshield-pipeline/internal/models"
)

// MemoryStore is the in-process SessionStore used when Redis is not
// configured and in tests. States round-trip through JSON so the stored
// copy is isolated from caller mutation, same as the Redis path.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (store *MemoryStore) SaveState(_ context.Context, state *models.AnalysisState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return models.NewInternalError("STATE_MARSHAL_FAILED", "failed to serialize analysis state").WithCause(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.states[state.SessionID] = payload
	return nil
}

func (store *MemoryStore) LoadState(_ context.Context, sessionID string) (*models.AnalysisState, error) {
	store.mu.RLock()
	payload, ok := store.states[sessionID]
	store.mu.RUnlock()

	if !ok {
		return nil, models.ErrSessionNotFound.WithMetadata("session_id", sessionID)
	}

	var state models.AnalysisState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, models.NewInternalError("STATE_UNMARSHAL_FAILED", "failed to deserialize analysis state").WithCause(err)
	}
	return &state, nil
}

func (store *MemoryStore) DeleteState(_ context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.states[sessionID]; !ok {
		return models.ErrSessionNotFound.WithMetadata("session_id", sessionID)
	}
	delete(store.states, sessionID)
	return nil
}

func (store *MemoryStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.states)
}
