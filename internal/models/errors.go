package models

import "errors"

// Error kinds surfaced to the caller. Call sites wrap these with fmt.Errorf
// and %w so they can be told apart with errors.Is.
var (
	ErrIngest           = errors.New("ingest error")
	ErrEmptyInput       = errors.New("empty input")
	ErrEmbeddingService = errors.New("embedding service error")
	ErrLLMService       = errors.New("llm service error")
	ErrIndexNotFound    = errors.New("index not found")
	ErrRetrieval        = errors.New("retrieval error")
	ErrInvalidState     = errors.New("invalid state")
	ErrConfig           = errors.New("config error")
)
