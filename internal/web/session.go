package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"interview-rag/internal/helper"
	"interview-rag/internal/models"
)

const (
	sessionCookie = "interview_session"
	sessionKey    = "session_id"
	sessionMaxAge = 24 * time.Hour
	sweepInterval = time.Minute
)

type sessionEntry struct {
	mu       sync.Mutex
	state    models.SessionState
	lastSeen time.Time // guarded by SessionStore.mu
}

// SessionStore keeps one interview state per browser session. Entries are
// independent; each is locked only by requests of its own session. A session
// idle for longer than maxAge ends and its state is dropped.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*sessionEntry
	maxAge    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewSessionStore(maxAge time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// get returns the entry for id, creating an empty session on first use.
func (st *SessionStore) get(id string) *sessionEntry {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	st.sweep(now)
	e, ok := st.sessions[id]
	if !ok {
		e = &sessionEntry{}
		st.sessions[id] = e
	}
	e.lastSeen = now
	return e
}

// lookup is get without creating, for handlers that only read.
func (st *SessionStore) lookup(id string) (*sessionEntry, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	st.sweep(now)
	e, ok := st.sessions[id]
	if ok {
		e.lastSeen = now
	}
	return e, ok
}

// sweep drops expired sessions, at most once per sweepInterval. st.mu must be held.
func (st *SessionStore) sweep(now time.Time) {
	if now.Sub(st.lastSweep) < sweepInterval {
		return
	}
	st.lastSweep = now
	for id, e := range st.sessions {
		if now.Sub(e.lastSeen) > st.maxAge {
			delete(st.sessions, id)
		}
	}
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (s *Server) session(c *gin.Context) *sessionEntry {
	return s.sessions.get(c.GetString(sessionKey))
}

// sessionMiddleware makes sure every request carries a session id cookie.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || !helper.IsUUID(id) {
			id, err = helper.GenerateUUID()
			if err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, int(sessionMaxAge.Seconds()), "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request")
	}
}
