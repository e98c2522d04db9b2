package repository

import (
	"context"
	"time"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Upsert inserts a user or refreshes their profile fields. The stored
	// role is preserved on conflict so a sync can never demote an admin.
	Upsert(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their subject identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// List returns all known users.
	List(ctx context.Context) ([]domain.User, error)

	// ListAdminIDs returns the subject ids of every admin user.
	ListAdminIDs(ctx context.Context) ([]string, error)

	// UpdateRole sets the user's role.
	UpdateRole(ctx context.Context, id, role string) error
}

// TokenRepository is the revocation ledger: one row per issued token pair.
type TokenRepository interface {
	// Create persists a new token record.
	Create(ctx context.Context, rec *domain.TokenRecord) error

	// GetByAccessTokenID retrieves a record by its access token id (jti).
	GetByAccessTokenID(ctx context.Context, accessTokenID string) (*domain.TokenRecord, error)

	// GetByRefreshTokenID retrieves a record by its refresh token id.
	GetByRefreshTokenID(ctx context.Context, refreshTokenID string) (*domain.TokenRecord, error)

	// RotateAccess patches the row identified by refreshTokenID with a new
	// access token id and expiry. Invalidated rows are never rotated.
	RotateAccess(ctx context.Context, refreshTokenID, newAccessTokenID string, newAccessExpiresAt time.Time) error

	// Invalidate flips the record to invalidated. Idempotent.
	Invalidate(ctx context.Context, accessTokenID string) error

	// InvalidateBySubject invalidates every record for the subject and
	// returns how many rows were touched.
	InvalidateBySubject(ctx context.Context, subjectID string) (int64, error)

	// DeleteExpired removes invalidated records and records whose both
	// expiries are in the past, returning the number deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ChatRepository defines chat persistence operations.
type ChatRepository interface {
	// Create persists a chat along with its participant index rows.
	Create(ctx context.Context, chat *domain.Chat) error

	// GetByID retrieves a chat with its participant set.
	GetByID(ctx context.Context, id string) (*domain.Chat, error)

	// ListAll returns every chat, most recently updated first.
	ListAll(ctx context.Context) ([]domain.Chat, error)

	// ListByParticipant returns chats where the subject is creator or a
	// listed participant, via the participant index.
	ListByParticipant(ctx context.Context, subjectID string) ([]domain.Chat, error)

	// Rename sets the chat name.
	Rename(ctx context.Context, id, name string) error

	// Touch bumps the chat's updated_at.
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes the chat, its messages, and its participant rows in
	// one transaction, messages first.
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines message persistence operations.
type MessageRepository interface {
	// Create persists a message.
	Create(ctx context.Context, msg *domain.Message) error

	// ListByChat returns the chat's messages ordered by send time,
	// insertion order breaking ties.
	ListByChat(ctx context.Context, chatID string) ([]domain.Message, error)

	// MarkRead appends the subject to read_by on every message of the chat
	// that does not already contain it, returning the number updated.
	MarkRead(ctx context.Context, chatID, subjectID string) (int64, error)

	// UnreadCount counts messages in the chat whose read_by excludes the
	// subject. Always computed fresh.
	UnreadCount(ctx context.Context, chatID, subjectID string) (int, error)
}

// TypingRepository tracks ephemeral typing signals.
type TypingRepository interface {
	// Set upserts the typing signal with a fresh timestamp and TTL.
	Set(ctx context.Context, chatID, subjectID string) error

	// Clear removes the typing signal.
	Clear(ctx context.Context, chatID, subjectID string) error

	// List returns live typing signals for the chat. Stale entries are
	// filtered out even if the store has not expired them yet.
	List(ctx context.Context, chatID string) ([]domain.TypingStatus, error)

	// ClearChat removes all typing signals for the chat.
	ClearChat(ctx context.Context, chatID string) error
}
