package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/usecase"
)

// ChatService is the orchestrator surface the gateway exposes.
type ChatService interface {
	Chat(ctx context.Context, p usecase.ChatParams) (string, <-chan domain.StreamEvent, error)
}

// SessionReader serves the session browsing endpoints.
type SessionReader interface {
	ListSessions(ctx context.Context, userID string, limit int) ([]domain.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

// ChatHandler serves the operator-facing chat API.
type ChatHandler struct {
	chat     ChatService
	sessions SessionReader
	logger   *slog.Logger
}

// NewChatHandler creates the chat API handler.
func NewChatHandler(chat ChatService, sessions SessionReader, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions, logger: logger}
}

// Register mounts the chat routes.
func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.handleChat)
	mux.HandleFunc("GET /api/v1/sessions", h.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", h.handleListMessages)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name,omitempty"`
	Content   string `json:"content"`
}

// handleChat accepts one operator message and streams the turn back as
// server-sent events. The first event carries the session ID.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID, events, err := h.chat.Chat(r.Context(), usecase.ChatParams{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Content:   req.Content,
	})
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, "session", map[string]string{"session_id": sessionID})
	flusher.Flush()

	for ev := range events {
		writeSSE(w, string(ev.Type), ev)
		flusher.Flush()
	}
	writeSSE(w, "done", map[string]string{"session_id": sessionID})
	flusher.Flush()
}

func (h *ChatHandler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.sessions.ListSessions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *ChatHandler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.sessions.ListMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *ChatHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrActionNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
