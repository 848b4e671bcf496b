package events

import "time"

// Stream and subject names.
const (
	StreamEvents = "CLAIRE_EVENTS"

	SubjectExchange = "claire.events.exchange"
)

// ExchangeEvent records one completed question/answer exchange. Published
// best-effort; chat requests never fail because publishing did.
type ExchangeEvent struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Question   string        `json:"question"`
	Answer     string        `json:"answer"`
	Documents  int           `json:"documents"`
	Streamed   bool          `json:"streamed"`
	Duration   time.Duration `json:"duration_ns"`
	OccurredAt time.Time     `json:"occurred_at"`
}
