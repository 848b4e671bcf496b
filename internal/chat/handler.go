package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clairehq/claire/internal/api"
	"github.com/clairehq/claire/internal/llm"
	"github.com/clairehq/claire/internal/rag"
)

// ChatRequest carries one question. SessionID is opaque; when omitted the
// server issues a fresh one and returns it in the X-Session-ID header.
type ChatRequest struct {
	Question  string `json:"question" validate:"required,min=1,max=8000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Chat answers one question in full: generated text plus ranked evidence.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.SessionID, req.Question)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	w.Header().Set("X-Session-ID", req.SessionID)
	api.JSON(w, http.StatusOK, answer)
}

// Evidence lists the top matching segments for a question without invoking
// the generation model.
func (h *Handler) Evidence(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")

	answers, err := h.svc.Evidence(r.Context(), question)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, answers)
}

// ClearSession drops the conversation memory for a session.
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.svc.ClearSession(r.Context(), sessionID); err != nil {
		slog.Error("clearing session", "error", err, "session_id", sessionID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "session cleared")
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return req, false
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return req, false
	}

	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	return req, true
}

// handleDomainError maps core errors onto HTTP statuses.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyQuestion):
		api.HandleError(w, api.NewBadRequestError(ErrEmptyQuestion.Error()))
	case errors.Is(err, ErrSessionBusy):
		api.HandleError(w, api.ErrSessionBusy)
	case errors.Is(err, rag.ErrRetrievalUnavailable):
		slog.Error("retrieval failed", "error", err)
		api.HandleError(w, api.ErrRetrievalDown)
	case errors.Is(err, llm.ErrTimeout):
		slog.Error("generation timed out", "error", err)
		api.HandleError(w, api.ErrGenerationTimedOut)
	case errors.Is(err, llm.ErrUnavailable):
		slog.Error("generation failed", "error", err)
		api.HandleError(w, api.ErrGenerationDown)
	default:
		slog.Error("answering question", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}
