package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/clairehq/claire/internal/api"
	"github.com/clairehq/claire/internal/llm"
)

// wsGreeting is sent as soon as a streaming connection opens.
const wsGreeting = "How can I help you today?"

// streamFrame is one message of a streamed answer, over SSE or WebSocket.
// Exactly one field is set per frame; Done marks the normal end of an
// answer, Error a mid-stream failure.
type streamFrame struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// ChatStream answers one question as a server-sent-event stream: a series of
// `message` events carrying text fragments, terminated by a `done` event (or
// an `error` event on mid-stream failure). Evidence is not attached;
// streaming trades it for latency.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	fragments, record, err := h.svc.AnswerStream(r.Context(), req.SessionID, req.Question)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Session-ID", req.SessionID)
	w.WriteHeader(http.StatusOK)

	var delivered strings.Builder
	for f := range fragments {
		if f.Err != nil {
			writeSSE(w, "error", streamFrame{Error: f.Err.Error()})
			flusher.Flush()
			return
		}
		if f.Text != "" {
			writeSSE(w, "message", streamFrame{Text: f.Text})
			flusher.Flush()
			delivered.WriteString(f.Text)
		}
		if f.Done {
			record(delivered.String())
			writeSSE(w, "done", streamFrame{Done: true})
			flusher.Flush()
			return
		}
	}
	// Channel closed without a terminal frame: the client went away and the
	// stream was abandoned. Nothing is recorded.
}

func writeSSE(w http.ResponseWriter, event string, frame streamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// ChatWS serves the conversational WebSocket. Each connection is one
// session: the greeting is sent on open, every received text message is a
// question, and each answer is streamed as JSON frames ending with
// {"done":true} (or {"error":...}).
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	sessionID := uuid.New().String()

	if err := writeWSFrame(ctx, conn, streamFrame{Text: wsGreeting}); err != nil {
		return
	}

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		h.streamAnswerWS(ctx, conn, sessionID, string(msg))
	}
}

func (h *Handler) streamAnswerWS(ctx context.Context, conn *websocket.Conn, sessionID, question string) {
	// Cancelling here stops upstream generation when the write side fails.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fragments, record, err := h.svc.AnswerStream(ctx, sessionID, question)
	if err != nil {
		writeWSFrame(ctx, conn, streamFrame{Error: wsErrorMessage(err)})
		return
	}

	var delivered strings.Builder
	for f := range fragments {
		if f.Err != nil {
			writeWSFrame(ctx, conn, streamFrame{Error: wsErrorMessage(f.Err)})
			return
		}
		if f.Text != "" {
			if err := writeWSFrame(ctx, conn, streamFrame{Text: f.Text}); err != nil {
				return
			}
			delivered.WriteString(f.Text)
		}
		if f.Done {
			record(delivered.String())
			writeWSFrame(ctx, conn, streamFrame{Done: true})
			return
		}
	}
}

func writeWSFrame(ctx context.Context, conn *websocket.Conn, frame streamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// wsErrorMessage keeps backend details out of client-facing frames.
func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyQuestion), errors.Is(err, ErrSessionBusy):
		return err.Error()
	case errors.Is(err, llm.ErrTimeout):
		return "generation timed out"
	default:
		return "failed to answer question"
	}
}
