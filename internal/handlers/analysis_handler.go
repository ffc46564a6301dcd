package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AnalysisOrchestrator is the slice of the orchestrator the HTTP layer
// needs; the tests swap in a mock behind it.
type AnalysisOrchestrator interface {
	StartAnalysis(ctx context.Context, topic string, mentions []models.Mention) (*models.AnalysisState, error)
	RunStrategyLoop(ctx context.Context, sessionID string) (*models.AnalysisState, error)
	GetSession(ctx context.Context, sessionID string) (*models.AnalysisState, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetActiveSessionsCount() int
	GetStats() map[string]interface{}
	HealthCheck(ctx context.Context) error
}

type AnalysisHandler struct {
	orchestrator AnalysisOrchestrator
	logger       *logger.Logger
}

func NewAnalysisHandler(orchestrator AnalysisOrchestrator, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		orchestrator: orchestrator,
		logger:       log,
	}
}

func (handler *AnalysisHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/analysis", handler.StartAnalysis)
		api.POST("/analysis/:id/strategy", handler.RunStrategy)
		api.GET("/analysis/:id", handler.GetAnalysis)
		api.DELETE("/analysis/:id", handler.DeleteAnalysis)
	}
	router.GET("/health", handler.Health)
	router.GET("/stats", handler.Stats)
}

// StartAnalysis handles POST /api/v1/analysis.
func (handler *AnalysisHandler) StartAnalysis(c *gin.Context) {
	startTime := time.Now()

	var request models.StartAnalysisRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handler.respondError(c, models.NewInvalidInputError("MALFORMED_REQUEST", err.Error()))
		return
	}

	state, err := handler.orchestrator.StartAnalysis(c.Request.Context(), request.Topic, request.Mentions)
	if err != nil {
		handler.respondError(c, err)
		return
	}

	response := models.NewAnalysisResponse(state, "analysis completed")
	totalTime := float64(time.Since(startTime).Milliseconds())
	response.TotalTimeMS = &totalTime

	c.JSON(http.StatusCreated, response)
}

// RunStrategy handles POST /api/v1/analysis/:id/strategy.
func (handler *AnalysisHandler) RunStrategy(c *gin.Context) {
	startTime := time.Now()
	sessionID := c.Param("id")

	state, err := handler.orchestrator.RunStrategyLoop(c.Request.Context(), sessionID)
	if err != nil {
		handler.respondError(c, err)
		return
	}

	response := models.NewAnalysisResponse(state, "strategy report ready")
	totalTime := float64(time.Since(startTime).Milliseconds())
	response.TotalTimeMS = &totalTime

	c.JSON(http.StatusOK, response)
}

// GetAnalysis handles GET /api/v1/analysis/:id.
func (handler *AnalysisHandler) GetAnalysis(c *gin.Context) {
	state, err := handler.orchestrator.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAnalysisResponse(state, ""))
}

// DeleteAnalysis handles DELETE /api/v1/analysis/:id.
func (handler *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	if err := handler.orchestrator.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		handler.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"message":    "analysis session deleted",
	})
}

func (handler *AnalysisHandler) Health(c *gin.Context) {
	if err := handler.orchestrator.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": handler.orchestrator.GetActiveSessionsCount(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (handler *AnalysisHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, handler.orchestrator.GetStats())
}

// respondError maps pipeline error kinds onto HTTP statuses.
func (handler *AnalysisHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	var details map[string]interface{}

	var pipelineErr *models.PipelineError
	if errors.As(err, &pipelineErr) {
		code = pipelineErr.Code
		details = pipelineErr.Metadata
		switch pipelineErr.Kind {
		case models.ErrorKindInvalidInput:
			status = http.StatusBadRequest
		case models.ErrorKindNotFound:
			status = http.StatusNotFound
		case models.ErrorKindExternal, models.ErrorKindTimeout:
			status = http.StatusBadGateway
		case models.ErrorKindCancelled:
			status = http.StatusConflict
		}
	}

	if status >= http.StatusInternalServerError {
		handler.logger.WithError(err).Error("request failed", "path", c.FullPath())
	}

	c.JSON(status, models.ErrorResponse{
		Code:    code,
		Message: err.Error(),
		Details: details,
	})
}
