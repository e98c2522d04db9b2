package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
)

func newMessageTestFixture(t *testing.T) (*MessageRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewMessageRepository(mock)
	return repo, mock
}

func sampleMessage() *domain.Message {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Message{
		ID:              "msg-1",
		ChatID:          "chat-1",
		SenderID:        "u1",
		Content:         "hello",
		SentAt:          now,
		ReadBy:          []string{"u1"},
		IsAdminAuthored: false,
		IsSystemMessage: false,
	}
}

func messageColumns() []string {
	return []string{
		"id", "chat_id", "sender_id", "content", "sent_at",
		"read_by", "is_admin_authored", "is_system_message",
	}
}

func messageRow(m *domain.Message) *pgxmock.Rows {
	return pgxmock.NewRows(messageColumns()).AddRow(
		m.ID, m.ChatID, m.SenderID, m.Content, m.SentAt,
		m.ReadBy, m.IsAdminAuthored, m.IsSystemMessage,
	)
}

func TestMessageRepository_Create_Success(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	msg := sampleMessage()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(
			msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.SentAt,
			msg.ReadBy, msg.IsAdminAuthored, msg.IsSystemMessage,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), msg)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_Create_DatabaseError(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	msg := sampleMessage()

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(
			msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.SentAt,
			msg.ReadBy, msg.IsAdminAuthored, msg.IsSystemMessage,
		).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), msg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert message")
}

func TestMessageRepository_ListByChat(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	msg := sampleMessage()

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs("chat-1").
		WillReturnRows(messageRow(msg))

	msgs, err := repo.ListByChat(context.Background(), "chat-1")

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, *msg, msgs[0])
}

func TestMessageRepository_ListByChat_Empty(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs("chat-empty").
		WillReturnRows(pgxmock.NewRows(messageColumns()))

	msgs, err := repo.ListByChat(context.Background(), "chat-empty")

	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageRepository_MarkRead(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE messages").
		WithArgs("chat-1", "u2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.MarkRead(context.Background(), "chat-1", "u2")

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMessageRepository_MarkRead_SecondCallTouchesNothing(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	// The containment guard excludes already-read messages, so a repeat
	// call matches zero rows and still succeeds.
	mock.ExpectExec("UPDATE messages").
		WithArgs("chat-1", "u2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := repo.MarkRead(context.Background(), "chat-1", "u2")

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMessageRepository_UnreadCount(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("chat-1", "u2").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.UnreadCount(context.Background(), "chat-1", "u2")

	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
