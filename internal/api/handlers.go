package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatrelay/internal/auth"
	"chatrelay/internal/backend"
	"chatrelay/internal/core"
	"chatrelay/internal/store"
)

type contextKey string

const identityKey contextKey = "identity"

// APIHandler wires the HTTP surface to the chat service.
type APIHandler struct {
	chatService *core.ChatService
	tokens      *auth.TokenIssuer
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewAPIHandler(cs *core.ChatService, tokens *auth.TokenIssuer, log zerolog.Logger) *APIHandler {
	return &APIHandler{
		chatService: cs,
		tokens:      tokens,
		validate:    validator.New(),
		log:         log,
	}
}

// AuthMiddleware verifies the Bearer token and stores the caller identity in
// the request context. Every protected route sits behind this.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized or session invalid"})
			return
		}

		ident, err := h.tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized or session invalid"})
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) auth.Identity {
	ident, _ := r.Context().Value(identityKey).(auth.Identity)
	return ident
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, core.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, core.BadRequest("Email and password (min 8 characters) are required"))
		return
	}

	user, err := h.chatService.Register(req.Email, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	// Registration signs the user in; the response carries a ready session.
	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, core.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, core.BadRequest("Email and password are required"))
		return
	}

	user, err := h.chatService.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type chatRequest struct {
	ID         string              `json:"id" validate:"required,uuid"`
	Messages   []core.TurnMessage  `json:"messages" validate:"required,min=1"`
	Attachment *backend.Attachment `json:"attachment,omitempty"`
}

// ChatHandler is the relay endpoint. It answers either a JSON error or a 200
// with one NDJSON record per token, flushed as it is produced.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, core.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, core.BadRequest("Chat id and messages are required"))
		return
	}

	chatID, err := uuid.Parse(req.ID)
	if err != nil {
		writeError(w, h.log, core.BadRequest("Invalid chat ID"))
		return
	}

	userIP := r.Header.Get("X-Forwarded-For")
	if userIP == "" {
		userIP = r.RemoteAddr
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	streaming := false

	emit := func(chunk core.StreamChunk) error {
		if !streaming {
			// Headers go out with the first token, so pre-stream failures
			// can still produce a proper JSON error response.
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			streaming = true
		}
		if err := enc.Encode(chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	turn := core.TurnRequest{
		ChatID:     chatID,
		Messages:   req.Messages,
		Attachment: req.Attachment,
		UserIP:     userIP,
	}
	if _, err := h.chatService.StreamTurn(r.Context(), ident, turn, emit); err != nil {
		writeError(w, h.log, err)
		return
	}
}

func (h *APIHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not Found"})
		return
	}
	chatID, err := uuid.Parse(id)
	if err != nil {
		writeError(w, h.log, core.BadRequest("Invalid chat ID"))
		return
	}

	if err := h.chatService.DeleteChat(identityFrom(r), chatID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(identityFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

type chatDetailsResponse struct {
	*store.Chat
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, h.log, core.BadRequest("Invalid chat ID"))
		return
	}

	chat, messages, err := h.chatService.GetChatWithMessages(identityFrom(r), chatID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, chatDetailsResponse{Chat: chat, Messages: messages})
}

type visibilityRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=private public"`
}

func (h *APIHandler) UpdateVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		writeError(w, h.log, core.BadRequest("Invalid chat ID"))
		return
	}

	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, core.BadRequest("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, core.BadRequest("Visibility must be private or public"))
		return
	}

	if err := h.chatService.UpdateVisibility(identityFrom(r), chatID, req.Visibility); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Visibility updated"})
}

// DeleteTrailingHandler discards every message after the given one in its
// chat, which is how "regenerate from here" works.
func (h *APIHandler) DeleteTrailingHandler(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, h.log, core.BadRequest("Invalid message ID"))
		return
	}

	if err := h.chatService.DeleteTrailingFrom(identityFrom(r), messageID); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
