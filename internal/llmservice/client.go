package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"interview-rag/internal/config"
	"interview-rag/internal/models"
)

// NewChatModel creates the chat completion model for the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (llms.Model, error) {
	if err := cfg.RequireKey(); err != nil {
		return nil, err
	}

	log.Debug().Interface("config", map[string]any{
		"provider":    cfg.Provider,
		"base_url":    cfg.ChatLLM.BaseURL,
		"model":       cfg.ChatLLM.Model,
		"temperature": cfg.ChatLLM.Temperature,
		"max_tokens":  cfg.ChatLLM.MaxTokens,
	}).Msg("Creating chat model")

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case config.ProviderGoogleAI:
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.ChatLLM.Key),
			googleai.WithDefaultModel(cfg.ChatLLM.Model),
		)
	case config.ProviderOpenAI:
		llm, err = openai.New(
			openai.WithBaseURL(cfg.ChatLLM.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.ChatLLM.Key, "Bearer ")),
			openai.WithModel(cfg.ChatLLM.Model),
		)
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.ChatLLM.BaseURL),
			ollama.WithModel(cfg.ChatLLM.Model),
		)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", models.ErrConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLLMService, err)
	}
	return llm, nil
}

// GenerateContent sends messages with the configured sampling parameters and
// returns the first choice trimmed. Failures and empty replies are
// ErrLLMService.
func GenerateContent(ctx context.Context, llm llms.Model, llmConfig *config.LLMConfig, messages []llms.MessageContent) (string, error) {
	res, err := llm.GenerateContent(ctx, messages,
		llms.WithTemperature(llmConfig.Temperature),
		llms.WithMaxTokens(llmConfig.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrLLMService, err)
	}
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return "", fmt.Errorf("%w: no choices returned", models.ErrLLMService)
	}
	content := strings.TrimSpace(res.Choices[0].Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrLLMService)
	}
	return content, nil
}
