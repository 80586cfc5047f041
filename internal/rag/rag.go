package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"interview-rag/internal/chromemdb"
	"interview-rag/internal/config"
	"interview-rag/internal/llmservice"
	"interview-rag/internal/models"
)

type RAG struct {
	llm llms.Model
	cfg *config.Config
}

func NewRAG(llm llms.Model, cfg *config.Config) *RAG {
	return &RAG{llm: llm, cfg: cfg}
}

// Query retrieves the k chunks closest to query and asks the chat model to
// answer using only them. k <= 0 uses the configured top_k. Every call
// re-embeds the query and re-queries the index.
func (r *RAG) Query(ctx context.Context, index *chromemdb.Index, query string, k int) (*models.PromptResponse, error) {
	if index.Count() == 0 {
		return nil, fmt.Errorf("%w: index is empty", models.ErrRetrieval)
	}
	if k <= 0 {
		k = r.cfg.RAG.TopK
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	results, err := index.SearchText(ctx, query, k)
	if err != nil {
		return nil, err
	}

	var retrieved strings.Builder
	sources := make([]string, 0, len(results))
	for i, res := range results {
		if i > 0 {
			retrieved.WriteString(models.ContextSeparator)
		}
		retrieved.WriteString(res.Chunk.Text)
		sources = append(sources, fmt.Sprintf("%s p.%d (%.3f)", res.Chunk.Source.Label(), res.Chunk.Page, res.Similarity))
	}

	messages := r.messages(retrieved.String(), query)

	log.Debug().Int("retrieved", len(results)).Str("query", query).Msg("Calling chat model")
	content, err := llmservice.GenerateContent(ctx, r.llm, &r.cfg.ChatLLM, messages)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  strings.Join(sources, "\n"),
		Content: content,
	}, nil
}

// messages puts the framing in a system message and the retrieved context
// with the request in a human message.
func (r *RAG) messages(retrieved, query string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(models.ContextPromptTemplate, retrieved, query)),
	}
}

// Generate is Query reduced to the generated text.
func (r *RAG) Generate(ctx context.Context, index *chromemdb.Index, prompt string, k int) (string, error) {
	resp, err := r.Query(ctx, index, prompt, k)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// IndexedGenerator binds a RAG to one index so it can serve as an interview
// question source.
type IndexedGenerator struct {
	rag   *RAG
	index *chromemdb.Index
}

func (r *RAG) WithIndex(index *chromemdb.Index) *IndexedGenerator {
	return &IndexedGenerator{rag: r, index: index}
}

func (g *IndexedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.rag.Generate(ctx, g.index, prompt, 0)
}
