package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxChatBodyBytes = 64 << 10

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the pipeline result plus the session it belongs to.
type ChatResponse struct {
	*workflow.Result
	SessionID string `json:"session_id"`
}

// Chat answers one question. Identical questions that arrive while one is
// already running share that execution.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := uuid.New()
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid session_id")
			return
		}
		sessionID = id
	}

	ctx := workflow.WithSessionID(r.Context(), sessionID.String())
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		ctx = workflow.WithRequestID(ctx, reqID)
	}

	var turns []workflow.ConversationTurn
	if h.history != nil {
		var err error
		turns, err = h.history.Recent(ctx, sessionID, h.historyTurns)
		if err != nil {
			h.log.Warn("chat: failed to load history, continuing without it", "session_id", sessionID, "error", err)
			turns = nil
		}
	}

	result, err := h.dispatcher.Dispatch(ctx, question, func(execCtx context.Context) (*workflow.Result, error) {
		return h.runner.Run(execCtx, question, turns)
	})
	if err != nil {
		if r.Context().Err() != nil && errors.Is(err, r.Context().Err()) {
			// Client gone or request timed out; the timeout middleware answers.
			h.log.Debug("chat: request ended before the answer was ready", "session_id", sessionID, "error", err)
			return
		}
		h.log.Error("chat: pipeline failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error while answering the question")
		return
	}

	if h.history != nil && result.Error == "" && result.Intent != nil {
		if err := h.history.Save(ctx, sessionID, question, *result.Intent); err != nil {
			h.log.Warn("chat: failed to save history", "session_id", sessionID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, ChatResponse{Result: result, SessionID: sessionID.String()})
}

// ClearChat forgets the history of a session.
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}
	if h.history != nil {
		if err := h.history.Clear(r.Context(), sessionID); err != nil {
			h.log.Error("chat: failed to clear history", "session_id", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to clear history")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
