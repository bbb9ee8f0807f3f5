// Package ingest loads documents from the data directory into the knowledge store.
package ingest

//go:generate mockgen -source=job.go -destination=mock_job.go -package=ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vokinneberg/telugu-qa/internal/rag"
)

// ErrUnsupportedFile is returned for files no loader can read
var ErrUnsupportedFile = errors.New("unsupported file type")

// Indexer stores documents in the knowledge store
type Indexer interface {
	Ingest(ctx context.Context, docs []rag.Document) (int, error)
}

// Report summarizes one ingestion run
type Report struct {
	Processed []string
	Skipped   []string
	Chunks    int
	Failed    map[string]string
}

// Job ingests new files from a directory. Runs are serialized.
type Job struct {
	dataDir string
	ledger  *Ledger
	indexer Indexer
	mu      sync.Mutex
}

// NewJob creates an ingestion job over dataDir
func NewJob(dataDir string, ledger *Ledger, indexer Indexer) *Job {
	return &Job{dataDir: dataDir, ledger: ledger, indexer: indexer}
}

// Save writes an uploaded file into the data directory and returns its stored name.
// Names are reduced to their base name. An existing file with the same name is
// replaced and dropped from the ledger, so the next run indexes the new content.
func (j *Job) Save(name string, r io.Reader) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if !Supported(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(j.dataDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := j.ledger.Forget(name); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(j.dataDir, name)); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}

	return name, nil
}

// Run indexes every supported file not yet in the ledger. A file that fails is
// reported and left out of the ledger so the next run retries it.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	entries, err := os.ReadDir(j.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	processed, err := j.ledger.Processed()
	if err != nil {
		return nil, err
	}

	report := &Report{Failed: make(map[string]string)}
	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !Supported(name) {
			continue
		}
		if _, ok := processed[name]; ok {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		pending = append(pending, name)
	}
	sort.Strings(pending)

	if len(pending) == 0 {
		slog.Info("Knowledge base is up to date")
		return report, nil
	}
	slog.Info("Found new documents", "count", len(pending), "files", strings.Join(pending, ", "))

	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		chunks, err := j.ingestFile(ctx, name)
		if err != nil {
			slog.Error("Failed to ingest document", "file", name, "error", err)
			report.Failed[name] = err.Error()
			continue
		}

		if err := j.ledger.Record(name); err != nil {
			return report, err
		}
		report.Processed = append(report.Processed, name)
		report.Chunks += chunks
		slog.Info("Ingested document", "file", name, "chunks", chunks)
	}

	return report, nil
}

func (j *Job) ingestFile(ctx context.Context, name string) (int, error) {
	docs, err := Load(filepath.Join(j.dataDir, name))
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, errors.New("no text found")
	}
	return j.indexer.Ingest(ctx, docs)
}
