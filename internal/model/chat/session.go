package chat

import (
	"sync"
	"time"
)

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	mu    sync.Mutex
	turns []Turn
}

// NewSession returns an empty session.
func NewSession(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: createdAt,
		turns:     make([]Turn, 0, 16),
	}
}

// Append adds a turn to the end of the history.
func (s *Session) Append(turn Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
}

// Turns returns a copy of the history in order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

// Len reports the number of turns recorded so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
