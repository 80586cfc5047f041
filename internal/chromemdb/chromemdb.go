package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"interview-rag/internal/embedding"
	"interview-rag/internal/models"
)

const (
	metaSource = "source"
	metaPage   = "page"
)

// VectorDBManager builds and loads the on-disk chunk index.
type VectorDBManager struct {
	dbPath         string
	collectionName string
	compress       bool
	embedder       embeddings.Embedder
}

// Index is a loaded, queryable chunk index. It is read-only once built.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	dbPath     string
}

const (
	compress = false
)

// NewVectorDBManager returns a manager for the index stored under dbPath.
// The embedder is used both to build the index and to embed queries.
func NewVectorDBManager(dbPath, collectionName string, embedder embeddings.Embedder) *VectorDBManager {
	return &VectorDBManager{
		dbPath:         dbPath,
		collectionName: collectionName,
		compress:       compress,
		embedder:       embedder,
	}
}

func (m *VectorDBManager) Path() string { return m.dbPath }

// BuildIndex embeds chunks and persists them, replacing any previous index.
func (m *VectorDBManager) BuildIndex(ctx context.Context, chunks []models.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", models.ErrEmptyInput)
	}

	entries, err := embedding.EmbedChunks(ctx, m.embedder, chunks)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index folder: %w", err)
	}
	db, err := chromem.NewPersistentDB(m.dbPath, m.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	// rebuilding always starts from an empty collection
	if err := db.DeleteCollection(m.collectionName); err != nil {
		return nil, fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := db.CreateCollection(m.collectionName, nil, m.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   e.Chunk.Text,
			Metadata:  createMetadata(e.Chunk),
			Embedding: e.Embedding,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Info().Int("documents", len(docs)).Str("path", m.dbPath).Msg("Index built")
	return &Index{db: db, collection: c, embedder: m.embedder, dbPath: m.dbPath}, nil
}

// LoadIndex opens a previously built index. A missing, unreadable or empty
// index is reported as ErrIndexNotFound.
func (m *VectorDBManager) LoadIndex() (*Index, error) {
	info, err := os.Stat(m.dbPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrIndexNotFound, m.dbPath)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrIndexNotFound, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrIndexNotFound, m.dbPath)
	}

	db, err := chromem.NewPersistentDB(m.dbPath, m.compress)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt index: %w", models.ErrIndexNotFound, err)
	}
	c := db.GetCollection(m.collectionName, m.embeddingFunc())
	if c == nil || c.Count() == 0 {
		return nil, fmt.Errorf("%w: no %q collection in %s", models.ErrIndexNotFound, m.collectionName, m.dbPath)
	}

	log.Debug().Int("documents", c.Count()).Str("path", m.dbPath).Msg("Index loaded")
	return &Index{db: db, collection: c, embedder: m.embedder, dbPath: m.dbPath}, nil
}

func (m *VectorDBManager) embeddingFunc() chromem.EmbeddingFunc {
	embedder := m.embedder
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedding.EmbedQuery(ctx, embedder, text)
	}
}

// Count returns the number of stored chunks. A nil index has none.
func (i *Index) Count() int {
	if i == nil || i.collection == nil {
		return 0
	}
	return i.collection.Count()
}

// Search returns up to k chunks nearest to queryEmbedding by cosine
// similarity, most similar first.
func (i *Index) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.SearchResult, error) {
	count := i.Count()
	if count == 0 {
		return nil, fmt.Errorf("%w: index is empty", models.ErrRetrieval)
	}
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", models.ErrRetrieval)
	}
	k = min(max(k, 1), count)

	results, err := i.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query by similarity: %w", models.ErrRetrieval, err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		res, err := toSearchResult(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrRetrieval, err)
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Similarity > out[b].Similarity })
	return out, nil
}

// SearchText embeds text with the index's embedder and searches with it.
func (i *Index) SearchText(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	if i.Count() == 0 {
		return nil, fmt.Errorf("%w: index is empty", models.ErrRetrieval)
	}
	v, err := embedding.EmbedQuery(ctx, i.embedder, text)
	if err != nil {
		return nil, err
	}
	return i.Search(ctx, v, k)
}

// Entry returns the stored entry at position pos.
func (i *Index) Entry(ctx context.Context, pos int) (models.IndexEntry, error) {
	if i.Count() == 0 {
		return models.IndexEntry{}, fmt.Errorf("%w: index is empty", models.ErrRetrieval)
	}
	doc, err := i.collection.GetByID(ctx, strconv.Itoa(pos))
	if err != nil {
		return models.IndexEntry{}, fmt.Errorf("%w: entry %d: %w", models.ErrRetrieval, pos, err)
	}
	chunk, err := chunkFromDocument(doc.Content, doc.Metadata)
	if err != nil {
		return models.IndexEntry{}, err
	}
	return models.IndexEntry{Embedding: doc.Embedding, Chunk: chunk}, nil
}

// Export writes the collection to a single snapshot file. A non-empty
// encryptionKey must be 32 bytes and enables AES-GCM encryption.
func (i *Index) Export(filePath, encryptionKey string) error {
	if i.Count() == 0 {
		return fmt.Errorf("%w: nothing to export", models.ErrIndexNotFound)
	}
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}
	if encryptionKey != "" && len(encryptionKey) != 32 {
		return fmt.Errorf("%w: encryption key must be 32 bytes", models.ErrConfig)
	}

	log.Debug().
		Str("collection", i.collection.Name).
		Str("file", filePath).
		Bool("encrypted", encryptionKey != "").
		Msg("Exporting index")
	if err := i.db.ExportToFile(filePath, compress, encryptionKey, i.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func createMetadata(c models.Chunk) map[string]string {
	return map[string]string{
		metaSource: c.Source.String(),
		metaPage:   strconv.Itoa(c.Page),
	}
}

func chunkFromDocument(content string, metadata map[string]string) (models.Chunk, error) {
	source, ok := models.ParseSource(metadata[metaSource])
	if !ok {
		return models.Chunk{}, fmt.Errorf("unknown chunk source %q", metadata[metaSource])
	}
	page, err := strconv.Atoi(metadata[metaPage])
	if err != nil {
		return models.Chunk{}, fmt.Errorf("bad page metadata %q", metadata[metaPage])
	}
	return models.Chunk{Text: content, Source: source, Page: page}, nil
}

func toSearchResult(r chromem.Result) (models.SearchResult, error) {
	pos, err := strconv.Atoi(r.ID)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("bad document id %q", r.ID)
	}
	chunk, err := chunkFromDocument(r.Content, r.Metadata)
	if err != nil {
		return models.SearchResult{}, err
	}
	return models.SearchResult{Position: pos, Chunk: chunk, Similarity: r.Similarity}, nil
}
