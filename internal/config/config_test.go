package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"interview-rag/internal/models"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider != ProviderGoogleAI {
		t.Errorf("expected googleai provider, got %s", cfg.Provider)
	}
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 100 {
		t.Errorf("unexpected chunking defaults: %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.ChatLLM.Temperature != 0.7 || cfg.ChatLLM.MaxTokens != 300 {
		t.Errorf("unexpected sampling defaults: %v/%d", cfg.ChatLLM.Temperature, cfg.ChatLLM.MaxTokens)
	}
	if cfg.ChatLLM.Key != "secret" || cfg.EmbedLLM.Key != "secret" {
		t.Error("api key not propagated from env")
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("unexpected timeout %s", cfg.Timeout())
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("MY_KEY", "abc")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`provider: openai
api_key_env: MY_KEY
rag:
  chunk_size: 200
  chunk_overlap: 500
  index_path: /tmp/idx
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected openai, got %s", cfg.Provider)
	}
	if cfg.EmbedLLM.BaseURL == "" || cfg.ChatLLM.BaseURL == "" {
		t.Error("expected openai base urls to be defaulted")
	}
	if cfg.RAG.ChunkSize != 200 {
		t.Errorf("expected chunk size 200, got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		t.Errorf("overlap %d not clamped below size %d", cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	if cfg.RAG.IndexPath != "/tmp/idx" {
		t.Errorf("unexpected index path %s", cfg.RAG.IndexPath)
	}
	if err := cfg.RequireKey(); err != nil {
		t.Errorf("key should be present: %v", err)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRequireKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"google without key", ProviderGoogleAI, "", true},
		{"google with key", ProviderGoogleAI, "k", false},
		{"openai without key", ProviderOpenAI, "", true},
		{"ollama needs none", ProviderOllama, "", false},
		{"unknown provider", "bedrock", "k", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider}
			ApplyDefaults(cfg)
			cfg.EmbedLLM.Key = tt.key
			cfg.ChatLLM.Key = tt.key

			err := cfg.RequireKey()
			if tt.wantErr {
				if !errors.Is(err, models.ErrConfig) {
					t.Fatalf("expected ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_ProviderDefaults(t *testing.T) {
	tests := []struct {
		provider string
		keyEnv   string
		embed    string
		chat     string
		wantURL  bool
	}{
		{ProviderGoogleAI, "GOOGLE_API_KEY", "embedding-001", "gemini-2.0-flash", false},
		{ProviderOpenAI, "OPENAI_API_KEY", "text-embedding-3-small", "gpt-4o-mini", true},
		{ProviderOllama, "GOOGLE_API_KEY", "nomic-embed-text", "llama3.2", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte("provider: "+tt.provider+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if cfg.APIKeyEnv != tt.keyEnv {
				t.Errorf("api_key_env = %s, want %s", cfg.APIKeyEnv, tt.keyEnv)
			}
			if cfg.EmbedLLM.Model != tt.embed || cfg.ChatLLM.Model != tt.chat {
				t.Errorf("models = %s/%s, want %s/%s", cfg.EmbedLLM.Model, cfg.ChatLLM.Model, tt.embed, tt.chat)
			}
			if tt.wantURL && (cfg.EmbedLLM.BaseURL == "" || cfg.ChatLLM.BaseURL == "") {
				t.Error("expected base urls to be defaulted")
			}
			if cfg.RAG.ChunkOverlap != 100 {
				t.Errorf("expected default overlap 100, got %d", cfg.RAG.ChunkOverlap)
			}
		})
	}
}

func TestApplyDefaults_ChunkOverlap(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		want          int
	}{
		{"unset", 0, 0, 100},
		{"explicit", 1000, 150, 150},
		{"negative", 1000, -5, 100},
		{"not below size", 200, 500, 100},
		{"small chunks", 120, 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RAG: RAGConfig{ChunkSize: tt.size, ChunkOverlap: tt.overlap}}
			ApplyDefaults(cfg)
			if cfg.RAG.ChunkOverlap != tt.want {
				t.Errorf("overlap = %d, want %d", cfg.RAG.ChunkOverlap, tt.want)
			}
		})
	}
}
