package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"interview-rag/internal/models"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
)

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// Key is never read from the yaml file, only from the environment.
	Key string `yaml:"-"`
}

type RAGConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	TopK           int    `yaml:"top_k"`
	BatchSize      int    `yaml:"batch_size"`
	IndexPath      string `yaml:"index_path"`
	CollectionName string `yaml:"collection_name"`
	EncryptionKey  string `yaml:"encryption_key"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"`
}

type Config struct {
	Provider    string       `yaml:"provider"`
	APIKeyEnv   string       `yaml:"api_key_env"`
	TimeoutSecs int          `yaml:"timeout_secs"`
	LogLevel    string       `yaml:"log_level"`
	EmbedLLM    LLMConfig    `yaml:"embed_llm"`
	ChatLLM     LLMConfig    `yaml:"chat_llm"`
	RAG         RAGConfig    `yaml:"rag"`
	Server      ServerConfig `yaml:"server"`
}

const (
	defaultChunkSize      = 1000 // characters
	defaultChunkOverlap   = 100  // characters
	defaultTopK           = 4
	defaultBatchSize      = 100
	defaultIndexPath      = "./interview_index"
	defaultCollectionName = "interview_documents"
	defaultTimeoutSecs    = 30
	defaultTemperature    = 0.7
	defaultMaxTokens      = 300
)

// LoadConfig reads the yaml file at path. A missing file yields the defaults.
// Defaults are applied after decoding so they follow the chosen provider.
// A .env file in the working directory, if present, is loaded first so the
// API key can live there.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	key := os.Getenv(cfg.APIKeyEnv)
	cfg.EmbedLLM.Key = key
	cfg.ChatLLM.Key = key
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderGoogleAI
	}
	if cfg.APIKeyEnv == "" {
		switch cfg.Provider {
		case ProviderOpenAI:
			cfg.APIKeyEnv = "OPENAI_API_KEY"
		default:
			cfg.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = defaultTimeoutSecs
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	switch cfg.Provider {
	case ProviderGoogleAI:
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "embedding-001"
		}
		if cfg.ChatLLM.Model == "" {
			cfg.ChatLLM.Model = "gemini-2.0-flash"
		}
	case ProviderOpenAI:
		if cfg.EmbedLLM.BaseURL == "" {
			cfg.EmbedLLM.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.ChatLLM.BaseURL == "" {
			cfg.ChatLLM.BaseURL = cfg.EmbedLLM.BaseURL
		}
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "text-embedding-3-small"
		}
		if cfg.ChatLLM.Model == "" {
			cfg.ChatLLM.Model = "gpt-4o-mini"
		}
	case ProviderOllama:
		if cfg.EmbedLLM.BaseURL == "" {
			cfg.EmbedLLM.BaseURL = "http://localhost:11434"
		}
		if cfg.ChatLLM.BaseURL == "" {
			cfg.ChatLLM.BaseURL = cfg.EmbedLLM.BaseURL
		}
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "nomic-embed-text"
		}
		if cfg.ChatLLM.Model == "" {
			cfg.ChatLLM.Model = "llama3.2"
		}
	}
	if cfg.ChatLLM.Temperature == 0 {
		cfg.ChatLLM.Temperature = defaultTemperature
	}
	if cfg.ChatLLM.MaxTokens <= 0 {
		cfg.ChatLLM.MaxTokens = defaultMaxTokens
	}

	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	// zero means unset; overlap must stay below the chunk size
	if cfg.RAG.ChunkOverlap <= 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = min(defaultChunkOverlap, cfg.RAG.ChunkSize/2)
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.BatchSize <= 0 {
		cfg.RAG.BatchSize = defaultBatchSize
	}
	if cfg.RAG.IndexPath == "" {
		cfg.RAG.IndexPath = defaultIndexPath
	}
	if cfg.RAG.CollectionName == "" {
		cfg.RAG.CollectionName = defaultCollectionName
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
}

// RequireKey reports ErrConfig when the selected provider needs a credential
// and none was supplied.
func (c *Config) RequireKey() error {
	switch c.Provider {
	case ProviderGoogleAI, ProviderOpenAI:
		if c.EmbedLLM.Key == "" || c.ChatLLM.Key == "" {
			return fmt.Errorf("%w: %s is not set", models.ErrConfig, c.APIKeyEnv)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown provider %q", models.ErrConfig, c.Provider)
	}
	return nil
}

// Timeout bounds every call to the external AI provider.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}
