package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		check       func(*testing.T, *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "8000" {
					t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8000")
				}
				if cfg.KnowledgeLimit != 7 {
					t.Errorf("KnowledgeLimit = %d, want 7", cfg.KnowledgeLimit)
				}
				if cfg.WebSearchLimit != 3 {
					t.Errorf("WebSearchLimit = %d, want 3", cfg.WebSearchLimit)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
				}
				if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 150 {
					t.Errorf("chunking = %d/%d, want 1000/150", cfg.ChunkSize, cfg.ChunkOverlap)
				}
			},
		},
		{
			name: "environment overrides defaults",
			env: map[string]string{
				"SERVER_PORT":       "9090",
				"TRANSLATE_TIMEOUT": "3s",
				"ALLOWED_ORIGINS":   "https://qa.example.com, ,http://localhost:5173",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "9090" {
					t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "9090")
				}
				if cfg.TranslateTimeout != 3*time.Second {
					t.Errorf("TranslateTimeout = %v, want 3s", cfg.TranslateTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:5173" {
					t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
				}
			},
		},
		{
			name: "flags take precedence over environment",
			env:  map[string]string{"KNOWLEDGE_LIMIT": "5"},
			args: []string{"-knowledge-limit", "4"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.KnowledgeLimit != 4 {
					t.Errorf("KnowledgeLimit = %d, want 4", cfg.KnowledgeLimit)
				}
			},
		},
		{
			name:        "missing openai key",
			env:         map[string]string{"OPENAI_API_KEY": ""},
			wantErr:     true,
			errContains: "OpenAIAPIKey",
		},
		{
			name:        "overlap must be smaller than chunk size",
			args:        []string{"-chunk-size", "100", "-chunk-overlap", "100"},
			wantErr:     true,
			errContains: "ChunkOverlap",
		},
		{
			name:        "unknown flag",
			args:        []string{"-no-such-flag"},
			wantErr:     true,
			errContains: "failed to parse flags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(tt.args)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Load() expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Load() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
