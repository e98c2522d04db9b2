package postgres

import (
	"context"
	"fmt"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL.
// read_by is a text[] mutated only by set-union appends.
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new PostgreSQL-backed message repository.
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a message.
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, content, sent_at, read_by, is_admin_authored, is_system_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.SenderID,
		msg.Content,
		msg.SentAt,
		msg.ReadBy,
		msg.IsAdminAuthored,
		msg.IsSystemMessage,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// ListByChat returns the chat's messages ordered by send time. seq is a
// serial column, so ties under clock skew resolve by insertion order.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, content, sent_at, read_by, is_admin_authored, is_system_message
		FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at, seq`

	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.SentAt, &m.ReadBy, &m.IsAdminAuthored, &m.IsSystemMessage); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// MarkRead appends the subject to read_by on every message of the chat that
// does not already contain it. The WHERE guard makes repeat calls no-ops.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, subjectID string) (int64, error) {
	query := `
		UPDATE messages
		SET read_by = array_append(read_by, $2)
		WHERE chat_id = $1 AND NOT (read_by @> ARRAY[$2])`

	ct, err := r.db.Exec(ctx, query, chatID, subjectID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return ct.RowsAffected(), nil
}

// UnreadCount counts messages in the chat whose read_by excludes the subject.
func (r *MessageRepository) UnreadCount(ctx context.Context, chatID, subjectID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_id = $1 AND NOT (read_by @> ARRAY[$2])`

	var count int
	if err := r.db.QueryRow(ctx, query, chatID, subjectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}

	return count, nil
}
