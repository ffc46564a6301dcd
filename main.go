package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/handlers"
	"brandshield-pipeline/internal/pkg/logger"
	"brandshield-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("starting brandshield pipeline",
		"environment", cfg.Environment,
		"port", cfg.HTTP.Port,
	)

	// Session store: Redis when configured, in-memory otherwise.
	var store services.SessionStore
	var redisService *services.RedisService
	if cfg.Redis.URL != "" {
		redisService, err = services.NewRedisService(cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, falling back to in-memory session store")
			store = services.NewMemoryStore()
		} else {
			store = redisService
		}
	} else {
		log.Warn("no Redis URL configured, using in-memory session store")
		store = services.NewMemoryStore()
	}

	// Model-backed generation is optional; every consumer degrades to its
	// deterministic fallback when gemini stays nil.
	var generator services.TextGenerator
	var classifier services.TextClassifier
	if cfg.Gemini.APIKey != "" {
		gemini, err := services.NewGeminiService(cfg.Gemini, log)
		if err != nil {
			log.WithError(err).Warn("Gemini unavailable, running with template output only")
		} else {
			generator = gemini
			classifier = gemini
		}
	} else {
		log.Warn("no Gemini API key configured, running with template output only")
	}

	sentiment := services.NewLexiconSentimentScorer(log)
	emotion := services.NewLexiconEmotionAnalyzer(log)
	embedder := services.NewOllamaService(cfg.Ollama, log)
	fetcher := services.NewMentionFetcher(cfg.Fetcher, log)

	orchestrator := services.NewOrchestrator(
		store,
		fetcher,
		services.NewIndexBuilder(embedder, nil, cfg.Pipeline, log),
		services.NewCorrectiveRetriever(sentiment, classifier, cfg.Pipeline, log),
		services.NewRiskScorer(sentiment, emotion, cfg.Pipeline, log),
		services.NewSocialReplyDrafter(sentiment, generator, cfg.Pipeline, log),
		services.NewStrategyDrafter(generator, cfg.Pipeline, log),
		services.NewCriticReviewer(generator, cfg.Pipeline, log),
		cfg.Pipeline,
		log,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := handlers.NewAnalysisHandler(orchestrator, log)
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	orchestrator.Close()
	if redisService != nil {
		if err := redisService.Close(); err != nil {
			log.WithError(err).Error("Redis close failed")
		}
	}

	log.Info("brandshield pipeline stopped")
}
