package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tylerfeldstein/portfolio-chat/internal/auth"
	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	"github.com/tylerfeldstein/portfolio-chat/internal/event"
	"github.com/tylerfeldstein/portfolio-chat/internal/identity"
	pkgkafka "github.com/tylerfeldstein/portfolio-chat/pkg/kafka"
)

// --- Mock Token Repository ---

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, rec *domain.TokenRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockTokenRepository) GetByAccessTokenID(ctx context.Context, accessTokenID string) (*domain.TokenRecord, error) {
	args := m.Called(ctx, accessTokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenRecord), args.Error(1)
}

func (m *mockTokenRepository) GetByRefreshTokenID(ctx context.Context, refreshTokenID string) (*domain.TokenRecord, error) {
	args := m.Called(ctx, refreshTokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenRecord), args.Error(1)
}

func (m *mockTokenRepository) RotateAccess(ctx context.Context, refreshTokenID, newAccessTokenID string, newAccessExpiresAt time.Time) error {
	args := m.Called(ctx, refreshTokenID, newAccessTokenID, newAccessExpiresAt)
	return args.Error(0)
}

func (m *mockTokenRepository) Invalidate(ctx context.Context, accessTokenID string) error {
	args := m.Called(ctx, accessTokenID)
	return args.Error(0)
}

func (m *mockTokenRepository) InvalidateBySubject(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepository) ListAdminIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id, role string) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

// --- Mock Chat Repository ---

type mockChatRepository struct {
	mock.Mock
}

func (m *mockChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *mockChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *mockChatRepository) ListAll(ctx context.Context) ([]domain.Chat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chat), args.Error(1)
}

func (m *mockChatRepository) ListByParticipant(ctx context.Context, subjectID string) ([]domain.Chat, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chat), args.Error(1)
}

func (m *mockChatRepository) Rename(ctx context.Context, id, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *mockChatRepository) Touch(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockChatRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Message Repository ---

type mockMessageRepository struct {
	mock.Mock
}

func (m *mockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageRepository) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *mockMessageRepository) MarkRead(ctx context.Context, chatID, subjectID string) (int64, error) {
	args := m.Called(ctx, chatID, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageRepository) UnreadCount(ctx context.Context, chatID, subjectID string) (int, error) {
	args := m.Called(ctx, chatID, subjectID)
	return args.Int(0), args.Error(1)
}

// --- Mock Typing Repository ---

type mockTypingRepository struct {
	mock.Mock
}

func (m *mockTypingRepository) Set(ctx context.Context, chatID, subjectID string) error {
	args := m.Called(ctx, chatID, subjectID)
	return args.Error(0)
}

func (m *mockTypingRepository) Clear(ctx context.Context, chatID, subjectID string) error {
	args := m.Called(ctx, chatID, subjectID)
	return args.Error(0)
}

func (m *mockTypingRepository) List(ctx context.Context, chatID string) ([]domain.TypingStatus, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TypingStatus), args.Error(1)
}

func (m *mockTypingRepository) ClearChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

// --- Mock Identity Resolver ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, credential string) (*identity.Assertion, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Assertion), args.Error(1)
}

// --- Mock Session Revoker ---

type mockRevoker struct {
	mock.Mock
}

func (m *mockRevoker) RevokeAll(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Shared fixtures ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSigner() *auth.TokenSigner {
	return auth.NewTokenSigner("test-secret-key-for-testing-sessions", 15*time.Minute, 24*time.Hour)
}

// newTestEventProducer builds a real producer against an unreachable broker.
// Publishing is async so failures are swallowed, matching the fire-and-forget
// contract the services rely on.
func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	cfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	cfg.Async = true
	return event.NewProducer(pkgkafka.NewProducer(cfg, logger), logger)
}

func userIdentity(id string) domain.Identity {
	return domain.Identity{SubjectID: id, Role: domain.RoleUser}
}

func adminIdentity(id string) domain.Identity {
	return domain.Identity{SubjectID: id, Role: domain.RoleAdmin}
}
