package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatrelay/internal/auth"
	"chatrelay/internal/backend"
	"chatrelay/internal/store"
)

// Store is the slice of the persistence gateway the relay needs. *store.Store
// satisfies it; tests substitute their own.
type Store interface {
	CreateUser(email, passwordHash string) (*store.User, error)
	GetUserByEmail(email string) (*store.User, error)
	SaveChat(chat *store.Chat) error
	GetChatByID(id uuid.UUID) (*store.Chat, error)
	GetChatsByUserID(userID uuid.UUID) ([]store.Chat, error)
	DeleteChat(id uuid.UUID) error
	UpdateChatVisibility(id uuid.UUID, visibility string) error
	SaveMessages(messages []store.Message) error
	GetMessageByID(id uuid.UUID) (*store.Message, error)
	GetMessagesByChatID(chatID uuid.UUID) ([]store.Message, error)
	DeleteMessagesAfter(chatID uuid.UUID, ts time.Time) error
}

// Backend invokes the external compute function that produces replies.
type Backend interface {
	Invoke(ctx context.Context, req backend.InvokeRequest) (*backend.InvokeResponse, error)
}

// TurnMessage is one entry of the conversation list a client submits.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is one relay turn: the chat it belongs to, the conversation so
// far, and an optional attachment for the backend.
type TurnRequest struct {
	ChatID     uuid.UUID
	Messages   []TurnMessage
	Attachment *backend.Attachment
	UserIP     string
}

// StreamChunk is the tagged record emitted once per token on the relay
// stream. Exactly this shape goes on the wire as one NDJSON line.
type StreamChunk struct {
	Result             string `json:"result"`
	UserMessageID      string `json:"userMessageId"`
	AssistantMessageID string `json:"assistantMessageId"`
}

// TurnResult reports a completed turn.
type TurnResult struct {
	UserMessageID      uuid.UUID
	AssistantMessageID uuid.UUID
	Reply              string
}

// ChatService runs the relay pipeline: validate, resolve the chat, persist the
// user message, invoke the backend, stream the reply, persist the reply.
type ChatService struct {
	store   Store
	backend Backend
	delay   time.Duration
	log     zerolog.Logger
}

func NewChatService(st Store, be Backend, delay time.Duration, log zerolog.Logger) *ChatService {
	return &ChatService{store: st, backend: be, delay: delay, log: log}
}

// Register creates a user from an email and a plain-text password. The
// password is stored as a bcrypt hash only.
func (s *ChatService) Register(email, password string) (*store.User, error) {
	existing, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, StorageFailure(err)
	}
	if existing != nil {
		return nil, BadRequest("User already exists")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: "failed to process password", Err: err}
	}

	user, err := s.store.CreateUser(email, hash)
	if err != nil {
		if err == store.ErrEmailTaken {
			// Lost a race with a concurrent registration for the same email.
			return nil, BadRequest("User already exists")
		}
		return nil, StorageFailure(err)
	}
	return user, nil
}

// Login checks the credentials and returns the matching user. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *ChatService) Login(email, password string) (*store.User, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, StorageFailure(err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.Password) {
		return nil, Unauthorized("Invalid credentials")
	}
	return user, nil
}

// StreamTurn executes one turn. emit is called once per token; an emit error
// means the client is gone, which stops the stream but not the pipeline — the
// assistant reply is persisted regardless. Errors returned from StreamTurn
// always precede the first emit, so a failed turn never half-streams.
func (s *ChatService) StreamTurn(ctx context.Context, ident auth.Identity, req TurnRequest, emit func(StreamChunk) error) (*TurnResult, error) {
	if len(req.Messages) == 0 {
		return nil, BadRequest("No user message found")
	}
	for _, m := range req.Messages {
		if !store.ValidRole(m.Role) {
			return nil, BadRequest("Invalid message role: " + m.Role)
		}
	}
	latest := req.Messages[len(req.Messages)-1]
	if latest.Role != store.RoleUser {
		return nil, BadRequest("No user message found")
	}

	chat, err := s.store.GetChatByID(req.ChatID)
	if err != nil {
		return nil, StorageFailure(err)
	}
	if chat == nil {
		chat = &store.Chat{
			ID:         req.ChatID,
			UserID:     ident.UserID,
			Title:      TitleFromMessage(latest.Content),
			Visibility: store.VisibilityPrivate,
		}
		// A duplicate insert here means a concurrent request created the
		// chat first; SaveChat treats that as success and we proceed.
		if err := s.store.SaveChat(chat); err != nil {
			return nil, StorageFailure(err)
		}
		s.log.Info().Stringer("chat_id", chat.ID).Str("title", chat.Title).Msg("created chat")
	} else if chat.UserID != ident.UserID {
		return nil, Unauthorized("Chat belongs to another user")
	}

	userMessageID := uuid.New()
	userMsg := store.Message{
		ID:        userMessageID,
		ChatID:    req.ChatID,
		Role:      store.RoleUser,
		Content:   latest.Content,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveMessages([]store.Message{userMsg}); err != nil {
		return nil, StorageFailure(err)
	}

	resp, err := s.backend.Invoke(ctx, backend.InvokeRequest{
		Input:          latest.Content,
		ConversationID: req.ChatID.String(),
		UserEmail:      ident.Email,
		Attachment:     req.Attachment,
		UserIP:         req.UserIP,
	})
	if err != nil {
		return nil, err
	}

	reply := resp.Response
	if reply == "" {
		reply = "Error: No response content from backend"
	}
	if resp.DownloadLink != "" {
		reply = reply + "\n\n[Click here to download](" + resp.DownloadLink + ")"
	}

	assistantMessageID := uuid.New()
	var full strings.Builder
	clientGone := false
	for _, word := range strings.Split(reply, " ") {
		full.WriteString(word + " ")
		if !clientGone {
			chunk := StreamChunk{
				Result:             word + " ",
				UserMessageID:      userMessageID.String(),
				AssistantMessageID: assistantMessageID.String(),
			}
			if err := emit(chunk); err != nil {
				// Client hung up mid-stream. Keep assembling so the
				// reply is still saved in full.
				s.log.Warn().Err(err).Stringer("chat_id", req.ChatID).Msg("stream write failed, client gone")
				clientGone = true
				continue
			}
			// Artificial pacing; the backend hands us the full reply at
			// once, so the word-by-word effect is simulated.
			if s.delay > 0 {
				time.Sleep(s.delay)
			}
		}
	}

	result := &TurnResult{
		UserMessageID:      userMessageID,
		AssistantMessageID: assistantMessageID,
		Reply:              strings.TrimSpace(full.String()),
	}

	assistantMsg := store.Message{
		ID:        assistantMessageID,
		ChatID:    req.ChatID,
		Role:      store.RoleAssistant,
		Content:   result.Reply,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveMessages([]store.Message{assistantMsg}); err != nil {
		// Streaming already finished; the client has the reply even though
		// it is not durable. Accepted gap, log and move on.
		s.log.Error().Err(err).Stringer("chat_id", req.ChatID).Msg("failed to persist assistant message")
	}

	return result, nil
}

// DeleteChat removes a chat and its messages. Only the owner may delete.
func (s *ChatService) DeleteChat(ident auth.Identity, chatID uuid.UUID) error {
	chat, err := s.store.GetChatByID(chatID)
	if err != nil {
		return StorageFailure(err)
	}
	if chat == nil {
		return NotFound("Chat not found")
	}
	if chat.UserID != ident.UserID {
		return Unauthorized("Chat belongs to another user")
	}
	if err := s.store.DeleteChat(chatID); err != nil {
		return StorageFailure(err)
	}
	return nil
}

func (s *ChatService) ListChats(ident auth.Identity) ([]store.Chat, error) {
	chats, err := s.store.GetChatsByUserID(ident.UserID)
	if err != nil {
		return nil, StorageFailure(err)
	}
	return chats, nil
}

// GetChatWithMessages loads a chat and its history. Private chats are only
// visible to their owner; public ones to any authenticated user.
func (s *ChatService) GetChatWithMessages(ident auth.Identity, chatID uuid.UUID) (*store.Chat, []store.Message, error) {
	chat, err := s.store.GetChatByID(chatID)
	if err != nil {
		return nil, nil, StorageFailure(err)
	}
	if chat == nil {
		return nil, nil, NotFound("Chat not found")
	}
	if chat.Visibility != store.VisibilityPublic && chat.UserID != ident.UserID {
		return nil, nil, Unauthorized("Chat belongs to another user")
	}

	messages, err := s.store.GetMessagesByChatID(chatID)
	if err != nil {
		return nil, nil, StorageFailure(err)
	}
	return chat, messages, nil
}

// UpdateVisibility flips a chat between private and public. Owner only.
func (s *ChatService) UpdateVisibility(ident auth.Identity, chatID uuid.UUID, visibility string) error {
	if visibility != store.VisibilityPrivate && visibility != store.VisibilityPublic {
		return BadRequest("Invalid visibility: " + visibility)
	}
	chat, err := s.store.GetChatByID(chatID)
	if err != nil {
		return StorageFailure(err)
	}
	if chat == nil {
		return NotFound("Chat not found")
	}
	if chat.UserID != ident.UserID {
		return Unauthorized("Chat belongs to another user")
	}
	if err := s.store.UpdateChatVisibility(chatID, visibility); err != nil {
		return StorageFailure(err)
	}
	return nil
}

// DeleteTrailingFrom discards every message in the chat created strictly
// after the given message, so the conversation can branch from that point.
func (s *ChatService) DeleteTrailingFrom(ident auth.Identity, messageID uuid.UUID) error {
	msg, err := s.store.GetMessageByID(messageID)
	if err != nil {
		return StorageFailure(err)
	}
	if msg == nil {
		return NotFound("Message not found")
	}

	chat, err := s.store.GetChatByID(msg.ChatID)
	if err != nil {
		return StorageFailure(err)
	}
	if chat == nil {
		return NotFound("Chat not found")
	}
	if chat.UserID != ident.UserID {
		return Unauthorized("Chat belongs to another user")
	}

	if err := s.store.DeleteMessagesAfter(msg.ChatID, msg.CreatedAt); err != nil {
		return StorageFailure(err)
	}
	return nil
}
