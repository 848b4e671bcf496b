// Package chat orchestrates one question end to end: session guarding,
// memory snapshot, retrieval augmentation, generation (single-shot or
// streaming) and the memory/event side effects of a completed exchange.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clairehq/claire/internal/events"
	"github.com/clairehq/claire/internal/llm"
	"github.com/clairehq/claire/internal/memory"
	"github.com/clairehq/claire/internal/metrics"
	"github.com/clairehq/claire/internal/rag"
)

// ErrEmptyQuestion is returned for blank input, before any backend call.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ErrSessionBusy is returned when a question for the same session is already
// in flight. Callers retry once the running question finishes.
var ErrSessionBusy = errors.New("session busy")

// RecordFunc commits a streamed exchange to conversation memory. The caller
// passes exactly the text it delivered; nothing is persisted implicitly, so
// an abandoned stream leaves no partial answer behind.
type RecordFunc func(delivered string)

// Service is the conversational question-answering core.
type Service struct {
	augmentor *rag.Augmentor
	retriever *rag.Retriever
	generator llm.Generator
	memory    memory.Store
	publisher *events.Publisher // nil when NATS is not configured

	sessions        *guard
	evidenceResults int
}

// NewService wires the pipeline. publisher may be nil.
func NewService(
	augmentor *rag.Augmentor,
	retriever *rag.Retriever,
	generator llm.Generator,
	mem memory.Store,
	publisher *events.Publisher,
	evidenceResults int,
) *Service {
	if evidenceResults <= 0 {
		evidenceResults = 10
	}
	return &Service{
		augmentor:       augmentor,
		retriever:       retriever,
		generator:       generator,
		memory:          mem,
		publisher:       publisher,
		sessions:        newGuard(),
		evidenceResults: evidenceResults,
	}
}

// Answer runs the non-streaming path: augment, generate, assemble, then
// append both turns to the session memory. Either the full CompleteAnswer is
// returned or the call fails as a whole.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (rag.CompleteAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return rag.CompleteAnswer{}, ErrEmptyQuestion
	}

	if !s.sessions.tryAcquire(sessionID) {
		return rag.CompleteAnswer{}, ErrSessionBusy
	}
	defer s.sessions.release(sessionID)

	start := time.Now()

	aug, err := s.augment(ctx, sessionID, question)
	if err != nil {
		metrics.QuestionsTotal.WithLabelValues("single", "error").Inc()
		return rag.CompleteAnswer{}, err
	}

	genStart := time.Now()
	text, err := s.generator.Generate(ctx, aug.Prompt)
	if err != nil {
		metrics.QuestionsTotal.WithLabelValues("single", "error").Inc()
		return rag.CompleteAnswer{}, err
	}
	metrics.GenerationDuration.WithLabelValues("single").Observe(time.Since(genStart).Seconds())

	s.commit(ctx, sessionID, question, text)
	s.publishExchange(sessionID, question, text, len(aug.Answers), false, time.Since(start))

	metrics.QuestionsTotal.WithLabelValues("single", "ok").Inc()
	return rag.Assemble(text, aug.Answers), nil
}

// AnswerStream runs the streaming path. It returns the ordered fragment
// channel and a RecordFunc the caller invokes with the text it actually
// delivered once the stream completed normally. The session stays reserved
// until the channel is drained or ctx is cancelled.
func (s *Service) AnswerStream(ctx context.Context, sessionID, question string) (<-chan llm.Fragment, RecordFunc, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyQuestion
	}

	if !s.sessions.tryAcquire(sessionID) {
		return nil, nil, ErrSessionBusy
	}

	start := time.Now()

	aug, err := s.augment(ctx, sessionID, question)
	if err != nil {
		s.sessions.release(sessionID)
		metrics.QuestionsTotal.WithLabelValues("stream", "error").Inc()
		return nil, nil, err
	}

	upstream, err := s.generator.GenerateStream(ctx, aug.Prompt)
	if err != nil {
		s.sessions.release(sessionID)
		metrics.QuestionsTotal.WithLabelValues("stream", "error").Inc()
		return nil, nil, err
	}

	out := make(chan llm.Fragment, 8)
	go func() {
		defer close(out)
		defer s.sessions.release(sessionID)

		status := "ok"
		for f := range upstream {
			if f.Err != nil {
				status = "error"
			}
			select {
			case out <- f:
				metrics.StreamFragmentsTotal.Inc()
			case <-ctx.Done():
				// Consumer detached; drain the upstream so the generator
				// goroutine can observe the cancel and exit.
				for range upstream {
				}
				status = "cancelled"
				metrics.QuestionsTotal.WithLabelValues("stream", status).Inc()
				return
			}
		}
		metrics.GenerationDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
		metrics.QuestionsTotal.WithLabelValues("stream", status).Inc()
	}()

	record := func(delivered string) {
		s.commit(context.WithoutCancel(ctx), sessionID, question, delivered)
		s.publishExchange(sessionID, question, delivered, len(aug.Answers), true, time.Since(start))
	}
	return out, record, nil
}

// Evidence lists the most similar segments for a question, without memory,
// score floor or generation. Broader than the context-injection path.
func (s *Service) Evidence(ctx context.Context, question string) ([]rag.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	matches, err := s.retriever.Retrieve(ctx, question, s.evidenceResults)
	if err != nil {
		return nil, err
	}
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())

	answers := make([]rag.Answer, 0, len(matches))
	for _, m := range matches {
		answers = append(answers, rag.Answer{
			Text:     m.Segment.Text,
			Score:    m.Score,
			Metadata: m.Segment.Metadata,
		})
	}
	return answers, nil
}

// ClearSession destroys the session's conversation memory.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.memory.Clear(ctx, sessionID)
}

// augment snapshots memory and runs the augmentation pipeline. A memory
// read failure degrades to an empty history rather than failing the
// question.
func (s *Service) augment(ctx context.Context, sessionID, question string) (rag.Augmentation, error) {
	history, err := s.memory.Snapshot(ctx, sessionID)
	if err != nil {
		slog.Warn("memory snapshot failed, continuing without history", "error", err, "session_id", sessionID)
		history = nil
	}

	start := time.Now()
	aug, err := s.augmentor.Augment(ctx, question, history)
	if err != nil {
		return rag.Augmentation{}, err
	}
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	return aug, nil
}

// commit appends the user and assistant turns. Memory write failures are
// logged, not surfaced: the answer was already produced.
func (s *Service) commit(ctx context.Context, sessionID, question, answer string) {
	now := time.Now()
	if err := s.memory.Append(ctx, sessionID, memory.Turn{Role: memory.RoleUser, Content: question, Timestamp: now}); err != nil {
		slog.Warn("appending user turn", "error", err, "session_id", sessionID)
		return
	}
	if err := s.memory.Append(ctx, sessionID, memory.Turn{Role: memory.RoleAssistant, Content: answer, Timestamp: now}); err != nil {
		slog.Warn("appending assistant turn", "error", err, "session_id", sessionID)
	}
}

func (s *Service) publishExchange(sessionID, question, answer string, documents int, streamed bool, elapsed time.Duration) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev := events.ExchangeEvent{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Question:   question,
		Answer:     answer,
		Documents:  documents,
		Streamed:   streamed,
		Duration:   elapsed,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.PublishExchange(ctx, ev); err != nil {
		slog.Warn("publishing exchange event", "error", err, "session_id", sessionID)
	}
}
