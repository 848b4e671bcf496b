// Package llm talks to the generation backend (Ollama HTTP API) in two
// modes: single-shot and streaming.
package llm

import (
	"context"
	"errors"
	"net"
)

// ErrUnavailable is returned when the generation backend is unreachable or
// answers with an error status.
var ErrUnavailable = errors.New("generation unavailable")

// ErrTimeout is returned when the configured deadline elapses before the
// backend produced its first byte of output.
var ErrTimeout = errors.New("generation timeout")

// Fragment is one increment of a streamed answer. The stream is finite,
// ordered, and one-shot: a Fragment with Done set (or Err set, for a
// mid-stream failure) is terminal.
type Fragment struct {
	Text string
	Done bool
	Err  error
}

// Generator exposes the two generation modes over a shared prompt-to-text
// abstraction. Implementers pick one or both depending on target needs.
type Generator interface {
	// Generate blocks until the full answer text is available.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream returns an ordered channel of fragments. The channel is
	// closed after the terminal fragment. Cancelling ctx abandons in-flight
	// generation and releases backend resources.
	GenerateStream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// classify maps transport errors onto the package taxonomy. Deadline and
// net-level timeouts before any output count as ErrTimeout, everything else
// as ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}
