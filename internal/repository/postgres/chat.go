package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

// ChatRepository implements repository.ChatRepository using PostgreSQL.
// Membership is kept in a chat_participants index table so "which chats is
// this subject in" is a join, not an in-memory scan over all chats.
type ChatRepository struct {
	db DB
}

// NewChatRepository creates a new PostgreSQL-backed chat repository.
func NewChatRepository(db DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create persists a chat and its participant index rows in one transaction.
func (r *ChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chat insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO chats (id, name, creator_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, chat.Name, chat.CreatorID, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	for _, p := range chat.Participants {
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, subject_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			chat.ID, p,
		)
		if err != nil {
			return fmt.Errorf("insert chat participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chat insert: %w", err)
	}

	return nil
}

// GetByID retrieves a chat with its participant set.
func (r *ChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	query := `
		SELECT c.id, c.name, c.creator_id, c.created_at, c.updated_at,
		       COALESCE(array_agg(p.subject_id ORDER BY p.subject_id) FILTER (WHERE p.subject_id IS NOT NULL), '{}')
		FROM chats c
		LEFT JOIN chat_participants p ON p.chat_id = c.id
		WHERE c.id = $1
		GROUP BY c.id`

	var c domain.Chat
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.CreatorID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Participants,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}

	return &c, nil
}

// ListAll returns every chat, most recently updated first.
func (r *ChatRepository) ListAll(ctx context.Context) ([]domain.Chat, error) {
	query := chatListSelect + `
		GROUP BY c.id
		ORDER BY c.updated_at DESC`

	return r.listChats(ctx, query)
}

// ListByParticipant returns chats where the subject is creator or a listed
// participant, resolved through the participant index.
func (r *ChatRepository) ListByParticipant(ctx context.Context, subjectID string) ([]domain.Chat, error) {
	query := chatListSelect + `
		WHERE c.creator_id = $1
		   OR EXISTS (
			SELECT 1 FROM chat_participants m
			WHERE m.chat_id = c.id AND m.subject_id = $1
		   )
		GROUP BY c.id
		ORDER BY c.updated_at DESC`

	return r.listChats(ctx, query, subjectID)
}

// Rename sets the chat name.
func (r *ChatRepository) Rename(ctx context.Context, id, name string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE chats SET name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("chat", id)
	}
	return nil
}

// Touch bumps the chat's updated_at.
func (r *ChatRepository) Touch(ctx context.Context, id string, at time.Time) error {
	ct, err := r.db.Exec(ctx, `UPDATE chats SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("chat", id)
	}
	return nil
}

// Delete removes the chat, its messages, and its participant rows in one
// transaction. Messages go first so a partial failure never leaves orphans
// pointing at a missing chat.
func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chat delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, id); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_participants WHERE chat_id = $1`, id); err != nil {
		return fmt.Errorf("delete chat participants: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("chat", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chat delete: %w", err)
	}

	return nil
}

const chatListSelect = `
	SELECT c.id, c.name, c.creator_id, c.created_at, c.updated_at,
	       COALESCE(array_agg(p.subject_id ORDER BY p.subject_id) FILTER (WHERE p.subject_id IS NOT NULL), '{}')
	FROM chats c
	LEFT JOIN chat_participants p ON p.chat_id = c.id`

func (r *ChatRepository) listChats(ctx context.Context, query string, args ...any) ([]domain.Chat, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var c domain.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatorID, &c.CreatedAt, &c.UpdatedAt, &c.Participants); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	return chats, nil
}
