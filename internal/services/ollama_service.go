package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
)

// OllamaService provides embeddings from a local Ollama instance. It is
// the only EmbeddingProvider in production; tests inject stubs instead.
type OllamaService struct {
	client *http.Client
	config config.OllamaConfig
	logger *logger.Logger
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaService(cfg config.OllamaConfig, log *logger.Logger) *OllamaService {
	return &OllamaService{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: log,
	}
}

// Embed returns the embedding vector for one text. Transient HTTP
// failures are retried with exponential backoff up to MaxRetries;
// 4xx responses are permanent and fail immediately.
func (service *OllamaService) Embed(ctx context.Context, text string) ([]float64, error) {
	startTime := time.Now()

	operation := func() ([]float64, error) {
		return service.embedOnce(ctx, text)
	}

	vector, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(service.config.MaxRetries)),
	)
	if err != nil {
		service.logger.LogService("ollama", "embed", time.Since(startTime), map[string]interface{}{
			"text_length": len(text),
		}, err)
		return nil, models.WrapExternalError("OLLAMA", err)
	}

	service.logger.LogService("ollama", "embed", time.Since(startTime), map[string]interface{}{
		"text_length": len(text),
		"dimensions":  len(vector),
	}, nil)

	return vector, nil
}

func (service *OllamaService) embedOnce(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{
		Model:  service.config.Model,
		Prompt: text,
	})
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		service.config.URL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := service.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama returned status %d: %s", response.StatusCode, bytes.TrimSpace(body))
		if response.StatusCode >= 400 && response.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding for model %q", service.config.Model)
	}

	return parsed.Embedding, nil
}

// HealthCheck verifies the Ollama endpoint is reachable.
func (service *OllamaService) HealthCheck(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, service.config.URL+"/api/tags", nil)
	if err != nil {
		return err
	}

	response, err := service.client.Do(request)
	if err != nil {
		return models.WrapExternalError("OLLAMA", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return models.NewExternalError("OLLAMA_UNAVAILABLE",
			fmt.Sprintf("health check returned status %d", response.StatusCode))
	}
	return nil
}
