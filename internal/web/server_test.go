package web

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"interview-rag/internal/chromemdb"
	"interview-rag/internal/config"
	"interview-rag/internal/models"
	"interview-rag/internal/parser"
	"interview-rag/internal/rag"
	"interview-rag/internal/testutil"
)

type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func newTestServer(t *testing.T, chat *testutil.FakeChat) (*Server, *client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.RAG.IndexPath = t.TempDir()
	manager := chromemdb.NewVectorDBManager(cfg.RAG.IndexPath, cfg.RAG.CollectionName, &testutil.HashEmbedder{})
	srv := NewServer(cfg, parser.NewParser(cfg), manager, rag.NewRAG(chat, cfg))
	return srv, &client{t: t, router: srv.Router()}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) upload(files map[string][]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".pdf")
		if err != nil {
			c.t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func validUploads() map[string][]byte {
	return map[string][]byte{
		"resume": testutil.BuildPDF(
			[]string{"Priya Shah, data engineer"},
			[]string{"Airflow and Spark pipelines at scale"},
		),
		"job_description": testutil.BuildPDF([]string{"Seeking a data engineer with Spark"}),
	}
}

func TestInterviewFlow(t *testing.T) {
	chat := &testutil.FakeChat{Response: "How do you tune **Spark** jobs?"}
	srv, c := newTestServer(t, chat)

	w := c.get("/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Process Documents") {
		t.Fatalf("unexpected landing page: %d", w.Code)
	}

	w = c.upload(validUploads())
	if w.Code != http.StatusOK {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "vector store created") {
		t.Error("missing success message")
	}

	w = c.postForm("/question", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("question failed: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "<strong>Spark</strong>") {
		t.Error("question markdown not rendered")
	}

	w = c.postForm("/answer", url.Values{"answer": {"Partition sizing"}, "action": {"save"}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Partition sizing") {
		t.Fatalf("draft not kept: %d", w.Code)
	}

	w = c.postForm("/answer", url.Values{"answer": {"Partition sizing and caching"}, "action": {"submit"}})
	if w.Code != http.StatusOK {
		t.Fatalf("submit failed: %d", w.Code)
	}

	w = c.get("/transcript")
	if w.Code != http.StatusConflict {
		t.Errorf("transcript before finish: expected 409, got %d", w.Code)
	}

	w = c.postForm("/finish", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Interview Summary") {
		t.Fatalf("finish failed: %d", w.Code)
	}
	summary := w.Body.String()
	if !strings.Contains(summary, "<h3>Q1:</h3>") {
		t.Error("missing summary heading")
	}
	if !strings.Contains(summary, `<div class="question"><p>How do you tune <strong>Spark</strong> jobs?</p>`) {
		t.Errorf("summary question not rendered as a block: %s", summary)
	}

	w = c.get("/transcript")
	if w.Code != http.StatusOK {
		t.Fatalf("transcript failed: %d", w.Code)
	}
	want := "Q1: How do you tune **Spark** jobs?\nAnswer: Partition sizing and caching\n\n"
	if w.Body.String() != want {
		t.Errorf("transcript = %q, want %q", w.Body.String(), want)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "interview_summary.txt") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	w = c.postForm("/question", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("generate after finish: expected 409, got %d", w.Code)
	}
	if srv.sessions.Len() != 1 {
		t.Errorf("expected a single session, got %d", srv.sessions.Len())
	}
}

func TestQuestionWithoutIndex(t *testing.T) {
	_, c := newTestServer(t, &testutil.FakeChat{Response: "q"})

	w := c.postForm("/question", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "process documents first") {
		t.Error("missing error message")
	}
}

func TestSubmitWithoutQuestion(t *testing.T) {
	_, c := newTestServer(t, &testutil.FakeChat{Response: "q"})
	c.upload(validUploads())

	w := c.postForm("/answer", url.Values{"answer": {"early"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid state") {
		t.Error("missing invalid state message")
	}
}

func TestUploadErrors(t *testing.T) {
	_, c := newTestServer(t, &testutil.FakeChat{Response: "q"})

	w := c.upload(map[string][]byte{"resume": validUploads()["resume"]})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing jd: expected 400, got %d", w.Code)
	}

	w = c.upload(map[string][]byte{"resume": []byte("not a pdf"), "job_description": []byte("nor this")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad pdfs: expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ingest error") {
		t.Error("missing ingest error message")
	}
}

func TestLLMFailureIsShown(t *testing.T) {
	_, c := newTestServer(t, &testutil.FakeChat{Err: errors.New("quota exhausted")})
	c.upload(validUploads())

	w := c.postForm("/question", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "quota exhausted") {
		t.Error("error not shown to the user")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	chat := &testutil.FakeChat{Response: "Tell me about Airflow."}
	srv, a := newTestServer(t, chat)
	b := &client{t: t, router: a.router}

	a.upload(validUploads())
	a.postForm("/question", nil)

	w := b.postForm("/answer", url.Values{"answer": {"hijack"}})
	if w.Code != http.StatusConflict {
		t.Errorf("second session saw the first one's question: %d", w.Code)
	}
	if srv.sessions.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", srv.sessions.Len())
	}
}

func TestExistingIndexLoadedAtStartup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.RAG.IndexPath = t.TempDir()
	manager := chromemdb.NewVectorDBManager(cfg.RAG.IndexPath, cfg.RAG.CollectionName, &testutil.HashEmbedder{})
	chunks := []models.Chunk{{Text: "Rust and Go", Source: models.SourceResume, Page: 1}}
	if _, err := manager.BuildIndex(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	srv := NewServer(cfg, parser.NewParser(cfg), manager, rag.NewRAG(&testutil.FakeChat{Response: "q"}, cfg))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(w.Body.String(), `"index_ready":true`) {
		t.Errorf("index not picked up: %s", w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrIngest, http.StatusBadRequest},
		{models.ErrInvalidState, http.StatusConflict},
		{models.ErrIndexNotFound, http.StatusConflict},
		{models.ErrLLMService, http.StatusBadGateway},
		{models.ErrEmbeddingService, http.StatusBadGateway},
		{models.ErrConfig, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type trackingManager struct {
	IndexManager
	active, peak atomic.Int32
}

func (m *trackingManager) BuildIndex(ctx context.Context, chunks []models.Chunk) (*chromemdb.Index, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return m.IndexManager.BuildIndex(ctx, chunks)
}

func TestConcurrentUploadsBuildOneAtATime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.RAG.IndexPath = t.TempDir()
	manager := &trackingManager{
		IndexManager: chromemdb.NewVectorDBManager(cfg.RAG.IndexPath, cfg.RAG.CollectionName, &testutil.HashEmbedder{}),
	}
	srv := NewServer(cfg, parser.NewParser(cfg), manager, rag.NewRAG(&testutil.FakeChat{Response: "q"}, cfg))
	router := srv.Router()

	const uploads = 4
	codes := make([]int, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &client{t: t, router: router}
			codes[i] = c.upload(validUploads()).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("upload %d: expected 200, got %d", i, code)
		}
	}
	if peak := manager.peak.Load(); peak != 1 {
		t.Errorf("expected serialised builds, saw %d at once", peak)
	}
	if got := srv.index.Load().Count(); got != 3 {
		t.Errorf("expected 3 indexed chunks, got %d", got)
	}

	loaded, err := manager.LoadIndex()
	if err != nil {
		t.Fatalf("index directory unreadable after concurrent uploads: %v", err)
	}
	if loaded.Count() != 3 {
		t.Errorf("expected 3 persisted chunks, got %d", loaded.Count())
	}
}
