// Package memory keeps the bounded, per-session conversation log used to
// rewrite follow-up questions. Each session holds at most MaxMessages turns;
// appending beyond the bound evicts the oldest turn (FIFO).
package memory

import "context"

// DefaultMaxMessages is the conversation window size. User and assistant
// turns both count toward the bound.
const DefaultMaxMessages = 10

// Store is the per-session conversation memory. Snapshot returns a defensive
// copy: appends that happen after a snapshot was taken never mutate it.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Snapshot(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}
