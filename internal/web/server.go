package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"interview-rag/internal/chromemdb"
	"interview-rag/internal/config"
	"interview-rag/internal/interview"
	"interview-rag/internal/models"
	"interview-rag/internal/parser"
	"interview-rag/internal/rag"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexManager builds and loads the chunk index. *chromemdb.VectorDBManager
// implements it.
type IndexManager interface {
	BuildIndex(ctx context.Context, chunks []models.Chunk) (*chromemdb.Index, error)
	LoadIndex() (*chromemdb.Index, error)
}

// Server serves the single interview page. The loaded index is cached for
// the process lifetime and swapped after every successful rebuild.
type Server struct {
	cfg      *config.Config
	ingestor parser.Ingestor
	indexes  IndexManager
	rag      *rag.RAG
	sessions *SessionStore
	buildMu  sync.Mutex // one index rebuild at a time
	index    atomic.Pointer[chromemdb.Index]
	markdown goldmark.Markdown
	tmpl     *template.Template
}

type pageData struct {
	IndexReady bool
	Question   template.HTML
	Answer     string
	Pairs      []models.QAPair
	Finished   bool
	Error      string
	Success    string
}

func NewServer(cfg *config.Config, ingestor parser.Ingestor, indexes IndexManager, r *rag.RAG) *Server {
	s := &Server{
		cfg:      cfg,
		ingestor: ingestor,
		indexes:  indexes,
		rag:      r,
		sessions: NewSessionStore(sessionMaxAge),
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
	s.tmpl = template.Must(template.New("").Funcs(template.FuncMap{
		"markdown": s.renderMarkdown,
		"inc":      func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html"))

	// a previous run may have left an index behind
	if idx, err := indexes.LoadIndex(); err == nil {
		s.index.Store(idx)
		log.Info().Int("documents", idx.Count()).Msg("Loaded existing index")
	} else if !errors.Is(err, models.ErrIndexNotFound) {
		log.Warn().Err(err).Msg("Could not load existing index")
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery(), s.sessionMiddleware())
	router.SetHTMLTemplate(s.tmpl)
	router.MaxMultipartMemory = 32 << 20

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "index_ready": s.index.Load() != nil, "timestamp": time.Now()})
	})
	router.GET("/", s.handleIndex)
	router.POST("/documents", s.handleDocuments)
	router.POST("/question", s.handleQuestion)
	router.POST("/answer", s.handleAnswer)
	router.POST("/finish", s.handleFinish)
	router.GET("/transcript", s.handleTranscript)
	return router
}

func (s *Server) handleIndex(c *gin.Context) {
	entry, ok := s.sessions.lookup(c.GetString(sessionKey))
	if !ok {
		s.render(c, http.StatusOK, models.SessionState{}, nil, "")
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.render(c, http.StatusOK, entry.state, nil, "")
}

func (s *Server) handleDocuments(c *gin.Context) {
	entry := s.session(c)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	resume, errResume := readUpload(c, "resume")
	jd, errJD := readUpload(c, "job_description")
	if errResume != nil || errJD != nil {
		s.render(c, http.StatusBadRequest, entry.state, fmt.Errorf("%w: upload both a resume and a job description", models.ErrIngest), "")
		return
	}

	chunks, err := s.ingestor.Ingest(resume, jd)
	if err != nil {
		s.render(c, statusFor(err), entry.state, err, "")
		return
	}

	idx, err := s.rebuild(c.Request.Context(), chunks)
	if err != nil {
		s.render(c, statusFor(err), entry.state, err, "")
		return
	}

	log.Info().Int("chunks", len(chunks)).Int("documents", idx.Count()).Msg("Documents processed")
	s.render(c, http.StatusOK, entry.state, nil, "Documents processed and vector store created!")
}

// rebuild replaces the shared index. Builds from different sessions write the
// same directory, so they are serialised.
func (s *Server) rebuild(ctx context.Context, chunks []models.Chunk) (*chromemdb.Index, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()
	idx, err := s.indexes.BuildIndex(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.index.Store(idx)
	return idx, nil
}

func (s *Server) handleQuestion(c *gin.Context) {
	entry := s.session(c)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	idx := s.index.Load()
	if idx == nil {
		s.render(c, http.StatusConflict, entry.state, fmt.Errorf("%w: process documents first", models.ErrIndexNotFound), "")
		return
	}

	next, err := interview.GenerateQuestion(c.Request.Context(), entry.state, s.rag.WithIndex(idx))
	if err != nil {
		s.render(c, statusFor(err), entry.state, err, "")
		return
	}
	entry.state = next
	s.render(c, http.StatusOK, entry.state, nil, "")
}

func (s *Server) handleAnswer(c *gin.Context) {
	entry := s.session(c)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	next, err := interview.EditAnswer(entry.state, c.PostForm("answer"))
	if err == nil && c.PostForm("action") != "save" {
		next, err = interview.SubmitAnswer(next)
	}
	if err != nil {
		s.render(c, statusFor(err), entry.state, err, "")
		return
	}
	entry.state = next
	s.render(c, http.StatusOK, entry.state, nil, "")
}

func (s *Server) handleFinish(c *gin.Context) {
	entry := s.session(c)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	next, err := interview.Finish(entry.state)
	if err != nil {
		s.render(c, statusFor(err), entry.state, err, "")
		return
	}
	entry.state = next
	s.render(c, http.StatusOK, entry.state, nil, "")
}

func (s *Server) handleTranscript(c *gin.Context) {
	entry, ok := s.sessions.lookup(c.GetString(sessionKey))
	if !ok {
		s.render(c, http.StatusConflict, models.SessionState{}, fmt.Errorf("%w: finish the interview before downloading", models.ErrInvalidState), "")
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.state.Finished {
		s.render(c, http.StatusConflict, entry.state, fmt.Errorf("%w: finish the interview before downloading", models.ErrInvalidState), "")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", models.TranscriptFilename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(interview.Export(entry.state.QAPairs)))
}

func (s *Server) render(c *gin.Context, status int, state models.SessionState, err error, success string) {
	data := pageData{
		IndexReady: s.index.Load() != nil,
		Question:   s.renderMarkdown(state.CurrentQuestion),
		Answer:     state.CurrentAnswer,
		Pairs:      state.QAPairs,
		Finished:   state.Finished,
		Success:    success,
	}
	if err != nil {
		data.Error = err.Error()
		log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.HTML(status, "index.html", data)
}

func (s *Server) renderMarkdown(text string) template.HTML {
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

func readUpload(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	return readFileHeader(fh)
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// statusFor maps an error kind to the HTTP status of the re-rendered page.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrIngest), errors.Is(err, models.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrIndexNotFound), errors.Is(err, models.ErrRetrieval):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmbeddingService), errors.Is(err, models.ErrLLMService):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
