package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	pkgkafka "github.com/tylerfeldstein/portfolio-chat/pkg/kafka"
)

// Kafka topic constants for chat and session domain events. Consumers (the
// workflow/agent pipeline) treat these as fire-and-forget notifications.
const (
	TopicChatCreated    = "portfolio.chat.created"
	TopicMessageSent    = "portfolio.chat.message_sent"
	TopicChatDeleted    = "portfolio.chat.deleted"
	TopicSessionRevoked = "portfolio.session.revoked"
)

// Aggregate type constants.
const (
	AggregateTypeChat    = "chat"
	AggregateTypeSession = "session"
)

// Source identifier for events originating from this service.
const SourceChatService = "chat-service"

// ChatCreatedData is the payload for a chat.created event.
type ChatCreatedData struct {
	ChatID       string   `json:"chat_id"`
	Name         string   `json:"name"`
	CreatorID    string   `json:"creator_id"`
	Participants []string `json:"participants"`
}

// MessageSentData is the payload for a chat.message_sent event.
type MessageSentData struct {
	ChatID          string `json:"chat_id"`
	MessageID       string `json:"message_id"`
	SenderID        string `json:"sender_id"`
	IsAdminAuthored bool   `json:"is_admin_authored"`
	IsSystemMessage bool   `json:"is_system_message"`
}

// ChatDeletedData is the payload for a chat.deleted event.
type ChatDeletedData struct {
	ChatID    string `json:"chat_id"`
	DeletedBy string `json:"deleted_by"`
}

// SessionRevokedData is the payload for a session.revoked event.
type SessionRevokedData struct {
	SubjectID string `json:"subject_id"`
	Sessions  int64  `json:"sessions"`
}

// Producer publishes chat domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the chat service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishChatCreated publishes a chat.created event.
func (p *Producer) PublishChatCreated(ctx context.Context, chat *domain.Chat) error {
	data := ChatCreatedData{
		ChatID:       chat.ID,
		Name:         chat.Name,
		CreatorID:    chat.CreatorID,
		Participants: chat.Participants,
	}

	event, err := pkgkafka.NewEvent(TopicChatCreated, chat.ID, AggregateTypeChat, SourceChatService, data)
	if err != nil {
		return fmt.Errorf("create chat.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicChatCreated, event); err != nil {
		return fmt.Errorf("publish chat.created event: %w", err)
	}

	return nil
}

// PublishMessageSent publishes a chat.message_sent event.
func (p *Producer) PublishMessageSent(ctx context.Context, msg *domain.Message) error {
	data := MessageSentData{
		ChatID:          msg.ChatID,
		MessageID:       msg.ID,
		SenderID:        msg.SenderID,
		IsAdminAuthored: msg.IsAdminAuthored,
		IsSystemMessage: msg.IsSystemMessage,
	}

	event, err := pkgkafka.NewEvent(TopicMessageSent, msg.ChatID, AggregateTypeChat, SourceChatService, data)
	if err != nil {
		return fmt.Errorf("create chat.message_sent event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicMessageSent, event); err != nil {
		return fmt.Errorf("publish chat.message_sent event: %w", err)
	}

	return nil
}

// PublishChatDeleted publishes a chat.deleted event.
func (p *Producer) PublishChatDeleted(ctx context.Context, chatID, deletedBy string) error {
	data := ChatDeletedData{
		ChatID:    chatID,
		DeletedBy: deletedBy,
	}

	event, err := pkgkafka.NewEvent(TopicChatDeleted, chatID, AggregateTypeChat, SourceChatService, data)
	if err != nil {
		return fmt.Errorf("create chat.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicChatDeleted, event); err != nil {
		return fmt.Errorf("publish chat.deleted event: %w", err)
	}

	return nil
}

// PublishSessionRevoked publishes a session.revoked event.
func (p *Producer) PublishSessionRevoked(ctx context.Context, subjectID string, sessions int64) error {
	data := SessionRevokedData{
		SubjectID: subjectID,
		Sessions:  sessions,
	}

	event, err := pkgkafka.NewEvent(TopicSessionRevoked, subjectID, AggregateTypeSession, SourceChatService, data)
	if err != nil {
		return fmt.Errorf("create session.revoked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionRevoked, event); err != nil {
		return fmt.Errorf("publish session.revoked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session.revoked event",
		slog.String("subject_id", subjectID),
		slog.Int64("sessions", sessions),
	)

	return nil
}
