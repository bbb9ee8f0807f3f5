package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavily_Search(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		k             int
		wantTexts     []string
		wantErr       bool
		wantTemporary bool
	}{
		{
			name:   "results in API order",
			status: http.StatusOK,
			body: `{"query": "capital of France", "results": [
				{"title": "Paris", "url": "https://en.wikipedia.org/wiki/Paris", "content": "Paris is the capital of France.", "score": 0.98},
				{"title": "", "url": "https://example.com/france", "content": "France's capital city is Paris.", "score": 0.81}
			]}`,
			k:         3,
			wantTexts: []string{"Paris: Paris is the capital of France.", "France's capital city is Paris."},
		},
		{
			name:   "results are capped at k and blank snippets skipped",
			status: http.StatusOK,
			body: `{"results": [
				{"url": "https://a", "content": "  "},
				{"url": "https://b", "content": "first"},
				{"url": "https://c", "content": "second"},
				{"url": "https://d", "content": "third"}
			]}`,
			k:         2,
			wantTexts: []string{"first", "second"},
		},
		{
			name:      "no results",
			status:    http.StatusOK,
			body:      `{"results": []}`,
			k:         3,
			wantTexts: []string{},
		},
		{
			name:          "server error is temporary",
			status:        http.StatusBadGateway,
			body:          `{"detail": "upstream"}`,
			k:             3,
			wantErr:       true,
			wantTemporary: true,
		},
		{
			name:    "unauthorized is permanent",
			status:  http.StatusUnauthorized,
			body:    `{"detail": "bad key"}`,
			k:       3,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			status:  http.StatusOK,
			body:    `<html>`,
			k:       3,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tvly-test" {
					t.Errorf("Authorization = %q", got)
				}
				var req map[string]any
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("invalid request body: %v", err)
				}
				if req["query"] != "What is the capital of France?" {
					t.Errorf("query = %v", req["query"])
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewTavily("tvly-test", srv.URL)
			got, err := client.Search(context.Background(), "What is the capital of France?", tt.k)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Search() expected error but got nil")
				}
				var statusErr *StatusError
				if errors.As(err, &statusErr) && statusErr.Temporary() != tt.wantTemporary {
					t.Errorf("Search() Temporary() = %v, want %v", statusErr.Temporary(), tt.wantTemporary)
				}
				return
			}

			if err != nil {
				t.Fatalf("Search() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantTexts) {
				t.Fatalf("Search() returned %d passages, want %d: %+v", len(got), len(tt.wantTexts), got)
			}
			for i, p := range got {
				if p.Text != tt.wantTexts[i] {
					t.Errorf("Search() passage[%d].Text = %q, want %q", i, p.Text, tt.wantTexts[i])
				}
				if p.Source == "" {
					t.Errorf("Search() passage[%d] has no source", i)
				}
			}
		})
	}
}
