package memory

import (
	"context"
	"sync"
)

// WindowStore is an in-process Store used when Redis is not configured and in
// tests. Sessions live only for the lifetime of the process.
type WindowStore struct {
	mu       sync.Mutex
	maxMsgs  int
	sessions map[string][]Turn
}

// NewWindowStore creates a WindowStore bounded to maxMsgs turns per session.
func NewWindowStore(maxMsgs int) *WindowStore {
	if maxMsgs <= 0 {
		maxMsgs = DefaultMaxMessages
	}
	return &WindowStore{
		maxMsgs:  maxMsgs,
		sessions: make(map[string][]Turn),
	}
}

// Append adds a turn, evicting the oldest one once the window is full.
func (s *WindowStore) Append(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], turn)
	if len(turns) > s.maxMsgs {
		turns = turns[len(turns)-s.maxMsgs:]
	}
	// Re-slice into a fresh array so evicted entries don't pin the backing
	// array and snapshots taken earlier stay untouched.
	s.sessions[sessionID] = append(make([]Turn, 0, len(turns)), turns...)
	return nil
}

// Snapshot returns a copy of the session's turns, oldest first.
func (s *WindowStore) Snapshot(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Clear removes the session.
func (s *WindowStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
