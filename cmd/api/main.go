// main.go - The entry point: wiring, router setup and graceful shutdown.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/study_eval_gemini/configs"
	"github.com/studyhub/study_eval_gemini/internal/ai"
	"github.com/studyhub/study_eval_gemini/internal/api"
	"github.com/studyhub/study_eval_gemini/internal/common"
	"github.com/studyhub/study_eval_gemini/internal/pipeline"
	"github.com/studyhub/study_eval_gemini/internal/ratelimit"
	"github.com/studyhub/study_eval_gemini/internal/storage"
)

type rawArchive interface {
	pipeline.ResponseArchiver
	Close(ctx context.Context) error
}

func main() {
	// Step 0: Load configuration
	cfg, err := configs.Load()
	if err != nil {
		common.NewLogger("info", "").Fatalf("Configuration error: %v", err)
	}
	logger := common.NewLogger(cfg.LogLevel, cfg.LogFile)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Step 1: System prompt. A missing prompt does not stop the server; every
	// evaluation fails with prompt_not_loaded until it is fixed.
	prompt, err := ai.LoadSystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		logger.WithError(err).Warn("System prompt not loaded; evaluations will fail until it is available")
	} else {
		logger.WithFields(map[string]interface{}{
			"path":     prompt.Path(),
			"encoding": prompt.Encoding(),
		}).Info("System prompt loaded")
	}

	// Step 2: Evaluator
	evaluator, err := ai.NewEvaluator(startupCtx, ai.ProviderConfig{
		Provider: ai.ProviderGemini,
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.ModelName,
		Timeout:  cfg.LLMTimeout,
		Pricing: common.Pricing{
			InputPerMillion:  cfg.InputPricePerMillion,
			OutputPerMillion: cfg.OutputPricePerMillion,
			USDToKRW:         cfg.USDToKRW,
		},
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create evaluator: %v", err)
	}
	defer evaluator.Close()

	// Step 3: Result store
	store, err := storage.OpenPostgres(startupCtx, cfg.DatabaseDSN, cfg.DBAutoCreate, logger)
	if err != nil {
		logger.Fatalf("Failed to open result store: %v", err)
	}
	defer store.Close()

	// Step 3.5: Optional raw response archive
	var archive rawArchive = storage.NoopArchive{}
	if cfg.MongoURI != "" {
		mongoArchive, err := storage.ConnectMongoArchive(startupCtx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			logger.WithError(err).Warn("MongoDB archive unavailable; raw responses will not be kept")
		} else {
			logger.WithField("database", cfg.MongoDBName).Info("✅ Connected to MongoDB raw response archive")
			archive = mongoArchive
		}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = archive.Close(ctx)
	}()

	// Step 4: Pipeline
	analyzer := pipeline.NewAnalyzer(pipeline.Config{
		Evaluator:         evaluator,
		Prompt:            prompt,
		Limiter:           ratelimit.NewLimiter(cfg.RateLimitConcurrency, cfg.RateLimitCooldown),
		Store:             store,
		Archive:           archive,
		MaxImageDimension: cfg.MaxImageDimension,
	})

	// Step 5: Router
	handler := api.NewHandler(analyzer, store, logger, cfg.ProcessUnmatchedFiles)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		EnablePprof:    cfg.EnablePprof,
	})

	// Step 6: HTTP server. Batches are serialised through the limiter, so the
	// write timeout is left open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Infof("Starting server on :%s", cfg.Port)
		logger.Info("API Endpoints:")
		logger.Info("  POST /upload-and-analyze")
		logger.Info("  GET  /results")
		logger.Info("  GET  /results/:id")
		logger.Info("  GET  /filter-options")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
