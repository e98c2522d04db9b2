package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	"github.com/tylerfeldstein/portfolio-chat/internal/event"
	"github.com/tylerfeldstein/portfolio-chat/internal/repository"
	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

// maxMessageLength caps message content size.
const maxMessageLength = 4000

// welcomeMessage seeds new chats with a system-authored greeting.
const welcomeMessage = "Welcome! How can I help you today?"

// ChatService is the message store facade. Every operation passes through
// the authorizer before touching chat state.
type ChatService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	typingRepo  repository.TypingRepository
	userRepo    repository.UserRepository
	authorizer  *Authorizer
	producer    *event.Producer
	logger      *slog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	typingRepo repository.TypingRepository,
	userRepo repository.UserRepository,
	authorizer *Authorizer,
	producer *event.Producer,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		typingRepo:  typingRepo,
		userRepo:    userRepo,
		authorizer:  authorizer,
		producer:    producer,
		logger:      logger,
	}
}

// CreateChat creates a chat whose participant set is the caller, the given
// participants, and every admin, deduplicated. A system welcome message is
// seeded, pre-marked read by the creator only, so everyone else starts with
// one unread.
func (s *ChatService) CreateChat(ctx context.Context, identity domain.Identity, name string, participants []string) (*domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("chat name is required")
	}

	adminIDs, err := s.userRepo.ListAdminIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	now := time.Now().UTC()
	chat := &domain.Chat{
		ID:           uuid.NewString(),
		Name:         name,
		CreatorID:    identity.SubjectID,
		Participants: domain.CanonicalParticipants([]string{identity.SubjectID}, participants, adminIDs),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	welcome := &domain.Message{
		ID:              uuid.NewString(),
		ChatID:          chat.ID,
		SenderID:        domain.SystemSender,
		Content:         welcomeMessage,
		SentAt:          now,
		ReadBy:          []string{identity.SubjectID},
		IsSystemMessage: true,
	}
	if err := s.messageRepo.Create(ctx, welcome); err != nil {
		return nil, fmt.Errorf("seed welcome message: %w", err)
	}

	if err := s.producer.PublishChatCreated(ctx, chat); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish chat.created event",
			slog.String("chat_id", chat.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "chat created",
		slog.String("chat_id", chat.ID),
		slog.String("creator_id", identity.SubjectID),
		slog.Int("participants", len(chat.Participants)),
	)

	return chat, nil
}

// GetChat returns the chat after a read authorization.
func (s *ChatService) GetChat(ctx context.Context, identity domain.Identity, chatID string) (*domain.Chat, error) {
	return s.authorizer.Authorize(ctx, identity, chatID, ActionRead)
}

// ListChats returns the chats visible to the identity: admins see all,
// everyone else sees the chats they create or participate in, via the
// participant index.
func (s *ChatService) ListChats(ctx context.Context, identity domain.Identity) ([]domain.Chat, error) {
	if identity.IsAdmin() {
		return s.chatRepo.ListAll(ctx)
	}
	return s.chatRepo.ListByParticipant(ctx, identity.SubjectID)
}

// RenameChat renames the chat after a manage authorization.
func (s *ChatService) RenameChat(ctx context.Context, identity domain.Identity, chatID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.InvalidInput("chat name is required")
	}

	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionManage); err != nil {
		return err
	}

	return s.chatRepo.Rename(ctx, chatID, name)
}

// DeleteChat destroys the chat after a manage authorization. Typing signals
// go first, then messages and participants with the chat row, so orphans
// never outlive the chat under partial failure.
func (s *ChatService) DeleteChat(ctx context.Context, identity domain.Identity, chatID string) error {
	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionManage); err != nil {
		return err
	}

	if err := s.typingRepo.ClearChat(ctx, chatID); err != nil {
		return fmt.Errorf("clear typing signals: %w", err)
	}
	if err := s.chatRepo.Delete(ctx, chatID); err != nil {
		return err
	}

	if err := s.producer.PublishChatDeleted(ctx, chatID, identity.SubjectID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish chat.deleted event",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "chat deleted",
		slog.String("chat_id", chatID),
		slog.String("deleted_by", identity.SubjectID),
	)

	return nil
}

// SendMessage persists a message after a write authorization. The sender has
// read their own message from the start; the chat's updated_at is bumped so
// listings sort by activity.
func (s *ChatService) SendMessage(ctx context.Context, identity domain.Identity, chatID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidInput("message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("message content exceeds %d characters", maxMessageLength))
	}

	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionWrite); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:              uuid.NewString(),
		ChatID:          chatID,
		SenderID:        identity.SubjectID,
		Content:         content,
		SentAt:          now,
		ReadBy:          []string{identity.SubjectID},
		IsAdminAuthored: identity.IsAdmin(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := s.chatRepo.Touch(ctx, chatID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to bump chat activity",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishMessageSent(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish chat.message_sent event",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}

	return msg, nil
}

// ListMessages returns the chat's messages after a read authorization,
// ordered by send time with insertion order breaking ties.
func (s *ChatService) ListMessages(ctx context.Context, identity domain.Identity, chatID string) ([]domain.Message, error) {
	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionRead); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByChat(ctx, chatID)
}

// MarkRead appends the caller to every unread message of the chat. The
// union is monotonic, so redundant calls are harmless.
func (s *ChatService) MarkRead(ctx context.Context, identity domain.Identity, chatID string) error {
	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionRead); err != nil {
		return err
	}

	if _, err := s.messageRepo.MarkRead(ctx, chatID, identity.SubjectID); err != nil {
		return err
	}

	return nil
}

// UnreadCount counts the chat's messages not yet read by the caller. Always
// derived from the messages, never cached.
func (s *ChatService) UnreadCount(ctx context.Context, identity domain.Identity, chatID string) (int, error) {
	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionRead); err != nil {
		return 0, err
	}
	return s.messageRepo.UnreadCount(ctx, chatID, identity.SubjectID)
}

// SetTyping upserts or clears the caller's typing signal.
func (s *ChatService) SetTyping(ctx context.Context, identity domain.Identity, chatID string, isTyping bool) error {
	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionWrite); err != nil {
		return err
	}

	if isTyping {
		return s.typingRepo.Set(ctx, chatID, identity.SubjectID)
	}
	return s.typingRepo.Clear(ctx, chatID, identity.SubjectID)
}

// GetTyping returns the live typing signals for the chat.
func (s *ChatService) GetTyping(ctx context.Context, identity domain.Identity, chatID string) ([]domain.TypingStatus, error) {
	if _, err := s.authorizer.Authorize(ctx, identity, chatID, ActionRead); err != nil {
		return nil, err
	}
	return s.typingRepo.List(ctx, chatID)
}
