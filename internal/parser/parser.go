package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"interview-rag/internal/config"
	"interview-rag/internal/models"
)

type Ingestor interface {
	Ingest(resume, jobDescription []byte) ([]models.Chunk, error)
}

type ParserConfig struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 100  // characters
)

// NewParser builds a PDF ingestor from the rag section of cfg. A nil cfg uses
// the default chunk size and overlap.
func NewParser(cfg *config.Config) *ParserConfig {
	size, overlap := defaultChunkSize, defaultChunkOverlap
	if cfg != nil && cfg.RAG.ChunkSize > 0 {
		size = cfg.RAG.ChunkSize
		overlap = cfg.RAG.ChunkOverlap
	}
	if overlap <= 0 || overlap >= size {
		overlap = min(defaultChunkOverlap, size/2)
	}

	return &ParserConfig{
		chunkSize:    size,
		chunkOverlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// Ingest extracts both documents page by page and splits every page into
// overlapping chunks. Resume chunks come first, then job description chunks.
func (p *ParserConfig) Ingest(resume, jobDescription []byte) ([]models.Chunk, error) {
	resumePages, err := ExtractPages(resume)
	if err != nil {
		return nil, fmt.Errorf("%w: resume: %w", models.ErrIngest, err)
	}
	jdPages, err := ExtractPages(jobDescription)
	if err != nil {
		return nil, fmt.Errorf("%w: job description: %w", models.ErrIngest, err)
	}

	var chunks []models.Chunk
	for i, text := range resumePages {
		pageChunks, err := p.getChunks(text, models.SourceResume, i+1)
		if err != nil {
			return nil, fmt.Errorf("%w: resume page %d: %w", models.ErrIngest, i+1, err)
		}
		chunks = append(chunks, pageChunks...)
	}
	for i, text := range jdPages {
		pageChunks, err := p.getChunks(text, models.SourceJobDescription, i+1)
		if err != nil {
			return nil, fmt.Errorf("%w: job description page %d: %w", models.ErrIngest, i+1, err)
		}
		chunks = append(chunks, pageChunks...)
	}

	log.Debug().
		Int("resume_pages", len(resumePages)).
		Int("jd_pages", len(jdPages)).
		Int("chunks", len(chunks)).
		Msg("Ingested documents")
	return chunks, nil
}

// ExtractPages returns the plain text of every page in order. It fails when
// the data is empty, not a PDF, has no pages or carries no text at all.
func ExtractPages(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a PDF file")
	}

	// the pdf package panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("corrupt PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	hasText := false
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText != "" {
			hasText = true
		}
		pages = append(pages, pageText)
	}
	if !hasText {
		return nil, fmt.Errorf("document has no extractable text")
	}
	return pages, nil
}

// Split breaks text into chunks of at most the configured size.
func (p *ParserConfig) Split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	parts, err := p.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, hardWrap(part, p.chunkSize)...)
	}
	return out, nil
}

// get chunks from page text and page number
func (p *ParserConfig) getChunks(content string, source models.Source, pageNumber int) ([]models.Chunk, error) {
	chunkStrings, err := p.Split(content)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(chunkStrings))
	for _, chunkString := range chunkStrings {
		chunks = append(chunks, models.Chunk{
			Text:   chunkString,
			Source: source,
			Page:   pageNumber,
		})
	}
	return chunks, nil
}

// hardWrap cuts s into rune windows of at most size. The splitter already
// honours the size; this keeps the bound even for its edge cases.
func hardWrap(s string, size int) []string {
	if utf8.RuneCountInString(s) <= size {
		return []string{s}
	}
	runes := []rune(s)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
