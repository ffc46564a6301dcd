package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/handlers"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

type MockOrchestrator struct {
	startErr error
	loopErr  error
	getErr   error
}

func (m *MockOrchestrator) StartAnalysis(_ context.Context, topic string, mentions []models.Mention) (*models.AnalysisState, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	state := models.NewAnalysisState(topic, mentions, time.Now().UTC())
	state.Stage = models.StageAnalyzed
	state.Risk = &models.RiskAssessment{RiskLevel: models.RiskLevelMedium, RiskScore: 30}
	return state, nil
}

func (m *MockOrchestrator) RunStrategyLoop(_ context.Context, sessionID string) (*models.AnalysisState, error) {
	if m.loopErr != nil {
		return nil, m.loopErr
	}
	state := models.NewAnalysisState("topic", []models.Mention{{ID: "m", Text: "x"}}, time.Now().UTC())
	state.SessionID = sessionID
	state.Stage = models.StageFinalized
	state.FinalReport = "report"
	return state, nil
}

func (m *MockOrchestrator) GetSession(_ context.Context, sessionID string) (*models.AnalysisState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	state := models.NewAnalysisState("topic", []models.Mention{{ID: "m", Text: "x"}}, time.Now().UTC())
	state.SessionID = sessionID
	return state, nil
}

func (m *MockOrchestrator) DeleteSession(_ context.Context, _ string) error { return m.getErr }

func (m *MockOrchestrator) GetActiveSessionsCount() int { return 0 }

func (m *MockOrchestrator) GetStats() map[string]interface{} {
	return map[string]interface{}{"active_sessions": 0}
}

func (m *MockOrchestrator) HealthCheck(_ context.Context) error { return nil }

func setupTestRouter(t *testing.T, orchestrator *MockOrchestrator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New(config.LogConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	router := gin.New()
	handlers.NewAnalysisHandler(orchestrator, log).RegisterRoutes(router)
	return router
}

func TestStartAnalysisEndpoint(t *testing.T) {
	router := setupTestRouter(t, &MockOrchestrator{})

	body, _ := json.Marshal(models.StartAnalysisRequest{
		Topic: "Acme Phone",
		Mentions: []models.Mention{
			{ID: "m1", Text: "the app keeps crashing"},
		},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var response models.AnalysisResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if response.SessionID == "" || response.Stage != models.StageAnalyzed {
		t.Errorf("unexpected response: %+v", response)
	}
}

func TestStartAnalysisRejectsMalformedBody(t *testing.T) {
	router := setupTestRouter(t, &MockOrchestrator{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", bytes.NewReader([]byte(`{"topic":`)))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestErrorKindStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", models.NewInvalidInputError("EMPTY_TOPIC", "topic must not be empty"), http.StatusBadRequest},
		{"external", models.NewExternalError("GEMINI_UNAVAILABLE", "capability down"), http.StatusBadGateway},
		{"internal", models.NewInternalError("BOOM", "unexpected"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupTestRouter(t, &MockOrchestrator{startErr: tc.err})

			body, _ := json.Marshal(models.StartAnalysisRequest{
				Topic:    "Acme",
				Mentions: []models.Mention{{ID: "m", Text: "x"}},
			})

			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", bytes.NewReader(body))
			request.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(recorder, request)

			if recorder.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	router := setupTestRouter(t, &MockOrchestrator{getErr: models.ErrSessionNotFound})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/nope", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}

	var response models.ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid error JSON: %v", err)
	}
	if response.Code != "SESSION_NOT_FOUND" {
		t.Errorf("expected SESSION_NOT_FOUND, got %s", response.Code)
	}
}

func TestRunStrategyEndpoint(t *testing.T) {
	router := setupTestRouter(t, &MockOrchestrator{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/session-1/strategy", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var response models.AnalysisResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if response.Stage != models.StageFinalized || response.State.FinalReport == "" {
		t.Errorf("expected a finalized report, got %+v", response)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t, &MockOrchestrator{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
