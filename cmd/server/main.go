package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go/option"

	"github.com/vokinneberg/telugu-qa/internal/config"
	"github.com/vokinneberg/telugu-qa/internal/ingest"
	"github.com/vokinneberg/telugu-qa/internal/llm"
	"github.com/vokinneberg/telugu-qa/internal/qa"
	"github.com/vokinneberg/telugu-qa/internal/rag"
	"github.com/vokinneberg/telugu-qa/internal/translate"
	"github.com/vokinneberg/telugu-qa/internal/websearch"

	httphandler "github.com/vokinneberg/telugu-qa/internal/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited")
}

// run owns every client and releases it before main exits
func run() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize LLM client
	llmClient := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel)
	slog.Info("Initialized OpenAI client", "model", llmClient.Model())

	// Initialize Qdrant client
	qdrantClient, err := rag.NewQdrantClient(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantAPIKey, cfg.QdrantCollection)
	if err != nil {
		return err
	}
	defer qdrantClient.Close()
	slog.Info("Initialized Qdrant client")

	// Initialize chunker
	chunker := rag.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	slog.Info("Initialized chunker", "size", cfg.ChunkSize, "overlap", cfg.ChunkOverlap)

	// Initialize RAG pipeline
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	pipeline, err := rag.NewPipeline(startupCtx, chunker, llmClient, qdrantClient, cfg.VectorSize)
	cancelStartup()
	if err != nil {
		return fmt.Errorf("failed to create RAG pipeline: %w", err)
	}
	slog.Info("Initialized RAG pipeline")

	// Initialize translators: hosted first, local model second
	var translators []translate.Translator
	if cfg.GoogleAPIKey != "" {
		translators = append(translators, translate.NewGoogle(cfg.GoogleAPIKey, ""))
	} else {
		slog.Warn("Google Translate key not set, using the local translator only")
	}
	if cfg.FallbackBaseURL != "" {
		localClient := llm.NewClient("local", cfg.FallbackModel, "", option.WithBaseURL(cfg.FallbackBaseURL)).
			WithSystemPrompt(translate.SystemPrompt)
		translators = append(translators, translate.NewLLM(localClient, cfg.MaxTokens))
	}
	translator := translate.NewChain(cfg.TranslateTimeout, translators...)
	slog.Info("Initialized translators", "count", len(translators))

	// Initialize QA pipeline
	orchestrator := qa.New(llmClient, pipeline, websearch.NewTavily(cfg.TavilyAPIKey, ""), translator, qa.Options{
		KnowledgeTopic:   cfg.KnowledgeTopic,
		KnowledgeLimit:   cfg.KnowledgeLimit,
		WebSearchLimit:   cfg.WebSearchLimit,
		MaxTokens:        cfg.MaxTokens,
		RouteTimeout:     cfg.RouteTimeout,
		RetrieveTimeout:  cfg.RetrieveTimeout,
		SynthesisTimeout: cfg.SynthesisTimeout,
		RetryBackoff:     cfg.RetryBackoff,
		TargetLanguage:   "te",
	})

	// Initialize ingestion job
	job := ingest.NewJob(cfg.DataDir, ingest.NewLedger(cfg.ProcessedLog), pipeline)

	// Initialize HTTP handlers
	handler := httphandler.NewHandlers(orchestrator, job, cfg.MaxUploadSize)

	// Create router
	r := httphandler.NewRouter(handler, cfg.AllowedOrigins)

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
