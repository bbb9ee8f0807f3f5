package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vokinneberg/telugu-qa/internal/config"
	"github.com/vokinneberg/telugu-qa/internal/ingest"
	"github.com/vokinneberg/telugu-qa/internal/llm"
	"github.com/vokinneberg/telugu-qa/internal/rag"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, cfg)
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Ingestion complete",
		"processed", len(report.Processed),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"chunks", report.Chunks,
	)
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) (*ingest.Report, error) {
	llmClient := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel)

	qdrantClient, err := rag.NewQdrantClient(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantAPIKey, cfg.QdrantCollection)
	if err != nil {
		return nil, err
	}
	defer qdrantClient.Close()

	pipeline, err := rag.NewPipeline(ctx, rag.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), llmClient, qdrantClient, cfg.VectorSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create RAG pipeline: %w", err)
	}

	slog.Info("Scanning documents", "dir", cfg.DataDir)
	return ingest.NewJob(cfg.DataDir, ingest.NewLedger(cfg.ProcessedLog), pipeline).Run(ctx)
}
