package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tylerfeldstein/portfolio-chat/pkg/validator"

	"github.com/tylerfeldstein/portfolio-chat/internal/service"
)

// ChatHandler handles HTTP requests for chat and message endpoints.
type ChatHandler struct {
	service *service.ChatService
	logger  *slog.Logger
}

// NewChatHandler creates a new chat HTTP handler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateChatRequest is the JSON request body for chat creation.
type CreateChatRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=200"`
	Participants []string `json:"participants" validate:"omitempty,dive,required"`
}

// RenameChatRequest is the JSON request body for renaming a chat.
type RenameChatRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// SendMessageRequest is the JSON request body for sending a message.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// TypingRequest is the JSON request body for updating typing state.
type TypingRequest struct {
	IsTyping *bool `json:"is_typing" validate:"required"`
}

// --- Handlers ---

// Create handles POST /api/v1/chats
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	chat, err := h.service.CreateChat(r.Context(), IdentityFromContext(r.Context()), req.Name, req.Participants)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: chat})
}

// List handles GET /api/v1/chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.service.ListChats(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: chats})
}

// Get handles GET /api/v1/chats/{id}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	chat, err := h.service.GetChat(r.Context(), IdentityFromContext(r.Context()), chatID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: chat})
}

// Rename handles PATCH /api/v1/chats/{id}
func (h *ChatHandler) Rename(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	var req RenameChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.RenameChat(r.Context(), IdentityFromContext(r.Context()), chatID, req.Name); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"id": chatID, "name": req.Name}})
}

// Delete handles DELETE /api/v1/chats/{id}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	if err := h.service.DeleteChat(r.Context(), IdentityFromContext(r.Context()), chatID); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"id": chatID, "status": "deleted"}})
}

// SendMessage handles POST /api/v1/chats/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	message, err := h.service.SendMessage(r.Context(), IdentityFromContext(r.Context()), chatID, req.Content)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: message})
}

// ListMessages handles GET /api/v1/chats/{id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	messages, err := h.service.ListMessages(r.Context(), IdentityFromContext(r.Context()), chatID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: messages})
}

// MarkRead handles POST /api/v1/chats/{id}/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	if err := h.service.MarkRead(r.Context(), IdentityFromContext(r.Context()), chatID); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"id": chatID, "status": "read"}})
}

// UnreadCount handles GET /api/v1/chats/{id}/unread
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	count, err := h.service.UnreadCount(r.Context(), IdentityFromContext(r.Context()), chatID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]int{"unread": count}})
}

// SetTyping handles PUT /api/v1/chats/{id}/typing
func (h *ChatHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.SetTyping(r.Context(), IdentityFromContext(r.Context()), chatID, *req.IsTyping); err != nil {
		writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTyping handles GET /api/v1/chats/{id}/typing
func (h *ChatHandler) GetTyping(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "chat id is required"},
		})
		return
	}

	statuses, err := h.service.GetTyping(r.Context(), IdentityFromContext(r.Context()), chatID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: statuses})
}
