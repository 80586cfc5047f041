package models

import "strconv"

// Source identifies which uploaded document a chunk came from.
type Source int

const (
	SourceResume Source = iota
	SourceJobDescription
)

func (s Source) String() string {
	switch s {
	case SourceResume:
		return "resume"
	case SourceJobDescription:
		return "job_description"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Label is the human readable form used in retrieved-source listings.
func (s Source) Label() string {
	switch s {
	case SourceResume:
		return "Resume"
	case SourceJobDescription:
		return "Job description"
	default:
		return s.String()
	}
}

// ParseSource is the inverse of String.
func ParseSource(v string) (Source, bool) {
	switch v {
	case "resume":
		return SourceResume, true
	case "job_description":
		return SourceJobDescription, true
	}
	return 0, false
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Page   int    `json:"page"`
}

// IndexEntry pairs a chunk with its embedding. Entries are addressed by
// their position in the index.
type IndexEntry struct {
	Embedding []float32
	Chunk     Chunk
}

// SearchResult is a retrieved chunk and its cosine similarity to the query.
type SearchResult struct {
	Position   int
	Chunk      Chunk
	Similarity float32
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
