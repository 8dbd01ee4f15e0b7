package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"intellidocs/internal/index"
	"intellidocs/internal/model"
)

// Session owns one document set, one vector index and one conversation log.
// Lifecycle: Empty -> HasDocuments (first successful ingest) -> Ready (index
// built); Reset returns it to Empty. Sessions share no state with each other.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	documents []model.Document
	chunks    []model.Chunk
	vectors   [][]float32
	idx       index.Index
	turns     []model.ConversationTurn
	nextTurn  int
	// content hash -> document name, for duplicate-upload rejection
	ingested map[string]string
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		ingested:  make(map[string]string),
	}
}

// ready reports whether the session holds a built index. Callers hold mu.
func (s *Session) ready() bool { return s.idx != nil }

// reset clears documents, index and history. Callers hold mu.
func (s *Session) reset(ctx context.Context) {
	if s.idx != nil {
		_ = s.idx.Close(ctx)
	}
	s.documents = nil
	s.chunks = nil
	s.vectors = nil
	s.idx = nil
	s.turns = nil
	s.nextTurn = 0
	s.ingested = make(map[string]string)
}

// SessionManager hands out and tracks independent sessions for the
// transport layer. It is the only shared structure between requests.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

func (m *SessionManager) Create() *Session {
	s := newSession()
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes the session's index and forgets the session.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(ctx)
	return nil
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
