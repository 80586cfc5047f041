package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

const hashDimensions = 64

// HashEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// get similar vectors; no network is involved.
type HashEmbedder struct {
	mu    sync.Mutex
	Calls int
	// Err, when set, is returned from every call.
	Err error
	// Drop removes this many vectors from EmbedDocuments results.
	Drop int
}

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.Calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, HashVector(t))
	}
	if e.Drop > 0 && e.Drop <= len(out) {
		out = out[:len(out)-e.Drop]
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.Calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	return HashVector(text), nil
}

// HashVector is the embedding HashEmbedder produces for text.
func HashVector(text string) []float32 {
	v := make([]float32, hashDimensions+1)
	v[hashDimensions] = 0.01 // never the zero vector
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%hashDimensions]++
	}
	return v
}

// FakeChat implements llms.Model and records the prompts it receives.
type FakeChat struct {
	mu       sync.Mutex
	Response string
	Err      error
	Prompts  []string
	Messages [][]llms.MessageContent
	Options  []llms.CallOptions
}

func (c *FakeChat) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	var prompt strings.Builder
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}

	c.mu.Lock()
	c.Prompts = append(c.Prompts, prompt.String())
	c.Messages = append(c.Messages, messages)
	c.Options = append(c.Options, opts)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: c.Response}},
	}, nil
}

func (c *FakeChat) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c, prompt, options...)
}

// LastMessages returns the most recent message list, or nil.
func (c *FakeChat) LastMessages() []llms.MessageContent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastPrompt returns the most recent prompt text, or "".
func (c *FakeChat) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Prompts) == 0 {
		return ""
	}
	return c.Prompts[len(c.Prompts)-1]
}
