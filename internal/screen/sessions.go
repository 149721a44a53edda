package screen

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle browser session keeps its screen
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxSessions bounds the number of screens held in memory
const DefaultMaxSessions = 1000

// IDGenerator generates session IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

type session struct {
	app      *App
	lastSeen time.Time
}

// Sessions keeps one App per browser in memory. Nothing survives a restart.
type Sessions struct {
	newApp      func() *App
	ttl         time.Duration
	limit       int
	idGenerator IDGenerator
	timeSource  TimeSource

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates a session store with a uuid generator and the wall clock.
// Zero ttl and limit select the defaults.
func NewSessions(newApp func() *App, ttl time.Duration, limit int) *Sessions {
	return NewSessionsWithDeps(newApp, ttl, limit, &uuidGenerator{}, &defaultTimeSource{})
}

// NewSessionsWithDeps creates a session store with custom dependencies for testing
func NewSessionsWithDeps(newApp func() *App, ttl time.Duration, limit int, idGen IDGenerator, timeSrc TimeSource) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	return &Sessions{
		newApp:      newApp,
		ttl:         ttl,
		limit:       limit,
		idGenerator: idGen,
		timeSource:  timeSrc,
		sessions:    make(map[string]*session),
	}
}

// Get returns the App for id, creating a fresh session when id is unknown or
// expired. The returned id is the one the client must present next time.
func (s *Sessions) Get(id string) (string, *App) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeSource.Now()
	s.evictLocked(now)

	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.lastSeen = now
		return id, sess.app
	}

	if len(s.sessions) >= s.limit {
		s.evictOldestLocked()
	}

	id = s.idGenerator.Generate()
	sess := &session{app: s.newApp(), lastSeen: now}
	s.sessions[id] = sess
	return id, sess.app
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) evictLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// evictOldestLocked drops the least recently used session
func (s *Sessions) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastSeen.Before(oldest) {
			oldestID, oldest = id, sess.lastSeen
		}
	}
	if oldestID != "" {
		slog.Debug("Session limit reached, dropping oldest session", "limit", s.limit)
		delete(s.sessions, oldestID)
	}
}
