package chat

import "sync"

// guard enforces the single-question-per-session policy: a second question
// arriving while one is in flight for the same session is rejected, not
// queued. Memory for a session is therefore never touched by two questions
// concurrently.
type guard struct {
	mu    sync.Mutex
	inUse map[string]struct{}
}

func newGuard() *guard {
	return &guard{inUse: make(map[string]struct{})}
}

// tryAcquire reserves the session. Returns false if a question for it is
// already in flight.
func (g *guard) tryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inUse[sessionID]; busy {
		return false
	}
	g.inUse[sessionID] = struct{}{}
	return true
}

// release frees the session for the next question.
func (g *guard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inUse, sessionID)
}
