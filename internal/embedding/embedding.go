package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"interview-rag/internal/config"
	"interview-rag/internal/models"
)

// NewEmbedder creates the embedder for the configured provider. It returns
// ErrConfig when the provider needs an API key that is not set.
func NewEmbedder(ctx context.Context, cfg *config.Config) (*embeddings.EmbedderImpl, error) {
	if err := cfg.RequireKey(); err != nil {
		return nil, err
	}

	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.EmbedLLM.BaseURL,
		"embedding_model": cfg.EmbedLLM.Model,
	}).Msg("Creating embedder")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderGoogleAI:
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.EmbedLLM.Key),
			googleai.WithDefaultEmbeddingModel(cfg.EmbedLLM.Model),
		)
	case config.ProviderOpenAI:
		client, err = openai.New(
			openai.WithBaseURL(cfg.EmbedLLM.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.EmbedLLM.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.EmbedLLM.Model),
		)
	case config.ProviderOllama:
		client, err = ollama.New(
			ollama.WithServerURL(cfg.EmbedLLM.BaseURL),
			ollama.WithModel(cfg.EmbedLLM.Model),
		)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", models.ErrConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingService, err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.RAG.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingService, err)
	}
	return embedder, nil
}

// EmbedChunks embeds every chunk text and pairs each vector with its chunk.
// A service error or a vector count that does not match the chunk count is
// reported as ErrEmbeddingService.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.IndexEntry, error) {
	if len(chunks) == 0 {
		return nil, models.ErrEmptyInput
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingService, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", models.ErrEmbeddingService, len(vectors), len(chunks))
	}

	entries := make([]models.IndexEntry, len(chunks))
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", models.ErrEmbeddingService, i, len(v), dim)
		}
		entries[i] = models.IndexEntry{Embedding: v, Chunk: chunks[i]}
	}
	log.Debug().Int("entries", len(entries)).Int("dimension", dim).Msg("Embedded chunks")
	return entries, nil
}

// EmbedQuery embeds a single prompt with the same model used for the index.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, text string) ([]float32, error) {
	v, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingService, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", models.ErrEmbeddingService)
	}
	return v, nil
}
