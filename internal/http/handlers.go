package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vokinneberg/telugu-qa/internal/ingest"
	"github.com/vokinneberg/telugu-qa/internal/qa"
	"github.com/vokinneberg/telugu-qa/internal/types"
)

//go:generate mockgen -source=handlers.go -destination=mock_handlers.go -package=http

// Asker answers a question through the QA pipeline
type Asker interface {
	Ask(ctx context.Context, question string) (*qa.Answer, error)
}

// Ingester stores uploaded documents and indexes them
type Ingester interface {
	Save(name string, r io.Reader) (string, error)
	Run(ctx context.Context) (*ingest.Report, error)
}

// sniffLen is the number of leading bytes used for content detection
const sniffLen = 3072

// multipartMemory is kept in memory before parts spill to disk
const multipartMemory = 8 << 20

// maxAskBodySize fits a maximum length question even when every rune is JSON escaped
const maxAskBodySize = 64 << 10

type AskReq struct {
	Question string `json:"question"`
}

type Handler struct {
	asker         Asker
	ingester      Ingester
	maxUploadSize int64
}

// NewHandlers initializes handlers with dependencies
func NewHandlers(asker Asker, ingester Ingester, maxUploadSize int64) *Handler {
	return &Handler{
		asker:         asker,
		ingester:      ingester,
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) AskHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)
	defer r.Body.Close()

	var req AskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, http.StatusRequestEntityTooLarge, "Request body is too large", err)
			return
		}
		errorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		errorResponse(w, http.StatusBadRequest, "Question is required", nil)
		return
	}

	reqID := middleware.GetReqID(r.Context())

	answer, err := h.asker.Ask(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, qa.ErrInvalidQuestion) {
			errorResponse(w, http.StatusBadRequest, "Invalid question", err)
			return
		}

		slog.Error("Failed to answer question", "error", err, "request_id", reqID)
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		errorResponse(w, status, "Failed to answer question", err)
		return
	}

	if answer.Degraded {
		slog.Warn("Answered without translation", "request_id", reqID, "intent", answer.Intent)
	}

	writeJSON(w, http.StatusOK, types.AskResponse{
		English:  answer.English,
		Telugu:   answer.Telugu,
		Intent:   answer.Intent.String(),
		Degraded: answer.Degraded,
		Sources:  answer.Sources,
	})
}

func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, http.StatusRequestEntityTooLarge, "Upload is too large", err)
			return
		}
		errorResponse(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		errorResponse(w, http.StatusBadRequest, "At least one file is required", nil)
		return
	}

	// Nothing is stored unless every part is acceptable.
	for _, fh := range files {
		if err := checkUpload(fh); err != nil {
			if errors.Is(err, ingest.ErrUnsupportedFile) {
				errorResponse(w, http.StatusUnsupportedMediaType, "Only PDF and plain text files are supported", err)
				return
			}
			errorResponse(w, http.StatusBadRequest, "Failed to read upload", err)
			return
		}
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := h.saveUpload(fh)
		if err != nil {
			slog.Error("Failed to save upload", "error", err, "file", fh.Filename)
			errorResponse(w, http.StatusInternalServerError, "Failed to save upload", err)
			return
		}
		saved = append(saved, name)
	}

	report, err := h.ingester.Run(r.Context())
	if err != nil {
		slog.Error("Failed to run ingestion", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to ingest documents", err)
		return
	}

	resp := types.UploadResponse{
		Status:    "completed",
		Saved:     saved,
		Processed: report.Processed,
		Chunks:    report.Chunks,
		Failed:    report.Failed,
	}
	if resp.Processed == nil {
		resp.Processed = []string{}
	}

	status := http.StatusOK
	if len(report.Failed) > 0 {
		resp.Status = "failed"
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// checkUpload verifies that the content of a part matches its file extension
func checkUpload(fh *multipart.FileHeader) error {
	if !ingest.Supported(fh.Filename) {
		return fmt.Errorf("%w: %s", ingest.ErrUnsupportedFile, fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	want := "text/plain"
	if strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		want = "application/pdf"
	}
	if detected := mimetype.Detect(head[:n]); !detected.Is(want) {
		return fmt.Errorf("%w: %s has content type %s", ingest.ErrUnsupportedFile, fh.Filename, detected.String())
	}
	return nil
}

func (h *Handler) saveUpload(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return h.ingester.Save(fh.Filename, f)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	writeJSON(w, status, types.ErrorResponse{
		Error:   http.StatusText(status),
		Message: errorMsg,
	})
}
