package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/vokinneberg/telugu-qa/internal/ingest"
	"github.com/vokinneberg/telugu-qa/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("Usage: upload <server-url> [docs-dir]")
		os.Exit(1)
	}

	serverURL := strings.TrimRight(os.Args[1], "/")
	docsDir := "testdata/docs"
	if len(os.Args) > 2 {
		docsDir = os.Args[2]
	}

	entries, err := os.ReadDir(docsDir)
	if err != nil {
		slog.Error("Failed to read docs directory", "dir", docsDir, "error", err)
		os.Exit(1)
	}

	client := resty.New().SetBaseURL(serverURL).SetTimeout(10 * time.Minute)
	req := client.R().SetResult(&types.UploadResponse{})

	var opened []*os.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, entry := range entries {
		if entry.IsDir() || !ingest.Supported(entry.Name()) {
			continue
		}
		f, err := os.Open(filepath.Join(docsDir, entry.Name()))
		if err != nil {
			slog.Error("Failed to open file", "file", entry.Name(), "error", err)
			continue
		}
		opened = append(opened, f)
		req.SetFileReader("files", entry.Name(), f)
	}

	if len(opened) == 0 {
		slog.Error("No .pdf or .txt files found", "dir", docsDir)
		os.Exit(1)
	}

	slog.Info("Uploading documents", "count", len(opened), "server", serverURL)
	resp, err := req.Post("/upload")
	if err != nil {
		slog.Error("Failed to upload documents", "error", err)
		os.Exit(1)
	}

	if resp.IsError() {
		body := resp.Body()
		if failed := gjson.GetBytes(body, "failed"); failed.Exists() {
			failed.ForEach(func(name, reason gjson.Result) bool {
				slog.Error("Failed to ingest file", "file", name.String(), "error", reason.String())
				return true
			})
		} else {
			slog.Error("Upload rejected", "status", resp.StatusCode(), "message", gjson.GetBytes(body, "message").String())
		}
		os.Exit(1)
	}

	result := resp.Result().(*types.UploadResponse)
	slog.Info("Ingestion complete", "saved", len(result.Saved), "processed", len(result.Processed), "chunks", result.Chunks)
}
