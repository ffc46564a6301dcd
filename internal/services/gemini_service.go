package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// GeminiService is the model-backed TextGenerator and TextClassifier.
// Calls go through a circuit breaker so a flapping API degrades fast
// instead of stalling every analysis session; callers already treat any
// error here as a signal to fall back to template output.
type GeminiService struct {
	client  *genai.Client
	breaker *gobreaker.CircuitBreaker
	config  config.GeminiConfig
	logger  *logger.Logger
}

type GenerationRequest struct {
	Prompt      string
	SystemRole  string
	MaxTokens   int32
	Temperature *float32
}

type GenerationResponse struct {
	Content        string
	FinishReason   string
	ProcessingTime time.Duration
}

func NewGeminiService(cfg config.GeminiConfig, log *logger.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key required")
	}

	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		client: client,
		config: cfg,
		logger: log,
	}

	service.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	log.Info("Gemini service initialized",
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
		"temperature", cfg.Temperature,
	)

	return service, nil
}

// Generate implements TextGenerator with the service defaults.
func (service *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := service.GenerateContent(ctx, &GenerationRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Classify implements TextClassifier: the question is posed as a system
// instruction and the answer is parsed as YES/NO. An unparseable answer
// is an error, never a silent "no".
func (service *GeminiService) Classify(ctx context.Context, text, question string) (bool, error) {
	temperature := float32(0)
	response, err := service.GenerateContent(ctx, &GenerationRequest{
		Prompt:      text,
		SystemRole:  question + " Respond with exactly one word: YES or NO.",
		MaxTokens:   8,
		Temperature: &temperature,
	})
	if err != nil {
		return false, err
	}

	answer := strings.ToUpper(strings.TrimSpace(response.Content))
	switch {
	case strings.HasPrefix(answer, "YES"):
		return true, nil
	case strings.HasPrefix(answer, "NO"):
		return false, nil
	}
	return false, models.NewExternalError("GEMINI_BAD_ANSWER",
		fmt.Sprintf("classifier returned %q, expected YES or NO", response.Content))
}

func (service *GeminiService) GenerateContent(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()

	var response *GenerationResponse
	var err error

	for attempt := 1; attempt <= service.config.MaxRetries; attempt++ {
		response, err = service.makeGenerationRequest(ctx, request)
		if err == nil {
			break
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// No point hammering an open breaker.
			break
		}

		if attempt < service.config.MaxRetries {
			service.logger.WithFields(logger.Fields{
				"attempt":     attempt,
				"max_retries": service.config.MaxRetries,
				"error":       err,
			}).Warn("Gemini generation failed, retrying")

			select {
			case <-time.After(service.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, models.NewTimeoutError("GEMINI_TIMEOUT", "content generation timed out").WithCause(ctx.Err())
			}
		}
	}

	if err != nil {
		service.logger.LogService("gemini", "generate_content", time.Since(startTime), map[string]interface{}{
			"prompt_length": len(request.Prompt),
		}, err)
		return nil, models.WrapExternalError("GEMINI", err)
	}

	response.ProcessingTime = time.Since(startTime)

	service.logger.LogService("gemini", "generate_content", response.ProcessingTime, map[string]interface{}{
		"prompt_length":   len(request.Prompt),
		"response_length": len(response.Content),
		"finish_reason":   response.FinishReason,
	}, nil)

	return response, nil
}

func (service *GeminiService) makeGenerationRequest(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	genCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{}

	if req.SystemRole != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemRole, genai.RoleUser)
	}

	if req.Temperature != nil {
		genConfig.Temperature = req.Temperature
	} else {
		temp := float32(service.config.Temperature)
		genConfig.Temperature = &temp
	}

	if req.MaxTokens != 0 {
		genConfig.MaxOutputTokens = req.MaxTokens
	} else {
		genConfig.MaxOutputTokens = int32(service.config.MaxTokens)
	}

	result, err := service.breaker.Execute(func() (interface{}, error) {
		return service.client.Models.GenerateContent(genCtx, service.config.Model, genai.Text(req.Prompt), genConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	generated := result.(*genai.GenerateContentResponse)
	if len(generated.Candidates) == 0 {
		return nil, errors.New("no response candidates generated")
	}

	candidate := generated.Candidates[0]
	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	return &GenerationResponse{
		Content:      text,
		FinishReason: string(candidate.FinishReason),
	}, nil
}

// HealthCheck issues a minimal generation to confirm API reachability.
func (service *GeminiService) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	_, err := service.breaker.Execute(func() (interface{}, error) {
		return service.client.Models.GenerateContent(checkCtx, service.config.Model, genai.Text("ping"), nil)
	})
	if err != nil {
		return models.WrapExternalError("GEMINI", err)
	}
	return nil
}
