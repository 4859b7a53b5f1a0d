package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/z-pilot/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for session and turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new session identifiers are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Service encapsulates conversation state management.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session

	now   func() time.Time
	newID func() string
}

// NewService bootstraps the in-memory session store. Sessions are never evicted.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]*chat.Session),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session registered under id, or a new empty session under a
// freshly minted identifier when id is empty or unknown.
func (s *Service) GetOrCreate(_ context.Context, id string) (*chat.Session, bool) {
	if id != "" {
		s.mu.RLock()
		session, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return session, false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newID := s.newID()
	for s.sessions[newID] != nil {
		newID = s.newID()
	}

	session := chat.NewSession(newID, s.now())
	s.sessions[newID] = session
	return session, true
}

// Append records a turn on an existing session.
func (s *Service) Append(_ context.Context, sessionID string, turn chat.Turn) error {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Record(session, turn)
	return nil
}

// Record stamps the turn and appends it to a session the caller already holds,
// whether or not it is still registered.
func (s *Service) Record(session *chat.Session, turn chat.Turn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	session.Append(turn)
}

// Transcript returns a copy of the turns stored for the session.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Turns(), nil
}

// Clear removes the session and reports whether anything was removed.
func (s *Service) Clear(_ context.Context, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Len reports how many sessions are live.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
