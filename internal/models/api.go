package models

import "time"

type StartAnalysisRequest struct {
	Topic    string    `json:"topic" binding:"required"`
	Mentions []Mention `json:"mentions" binding:"required"`
}

type AnalysisResponse struct {
	SessionID   string         `json:"session_id"`
	Stage       Stage          `json:"stage"`
	Message     string         `json:"message,omitempty"`
	State       *AnalysisState `json:"state,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	TotalTimeMS *float64       `json:"total_time_ms,omitempty"`
}

type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func NewAnalysisResponse(state *AnalysisState, message string) *AnalysisResponse {
	return &AnalysisResponse{
		SessionID: state.SessionID,
		Stage:     state.Stage,
		Message:   message,
		State:     state,
		Timestamp: time.Now(),
	}
}
