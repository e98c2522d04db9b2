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
	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewUserRepository(mock)
	return repo, mock
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:        "u1",
		Email:     "alice@example.com",
		Name:      "Alice",
		AvatarURL: "https://img.example.com/alice.png",
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func userColumns() []string {
	return []string{"id", "email", "name", "avatar_url", "role", "created_at", "updated_at"}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Email, u.Name, u.AvatarURL, u.Role, u.CreatedAt, u.UpdatedAt,
	)
}

func TestUserRepository_Upsert_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Email, u.Name, u.AvatarURL, u.Role, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), u)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Upsert_DefaultsEmptyRoleToUser(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()
	u.Role = ""

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Email, u.Name, u.AvatarURL, domain.RoleUser, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), u)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Upsert_DatabaseError(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Email, u.Name, u.AvatarURL, u.Role, u.CreatedAt, u.UpdatedAt).
		WillReturnError(errors.New("connection refused"))

	err := repo.Upsert(context.Background(), u)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upsert user")
}

func TestUserRepository_GetByID_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)

	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns()))

	got, err := repo.GetByID(context.Background(), "missing")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnRows(userRow(u))

	users, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)
}

func TestUserRepository_ListAdminIDs(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs(domain.RoleAdmin).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))

	ids, err := repo.ListAdminIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestUserRepository_ListAdminIDs_NoAdmins(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs(domain.RoleAdmin).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	ids, err := repo.ListAdminIDs(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUserRepository_UpdateRole_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users SET role").
		WithArgs(domain.RoleAdmin, pgxmock.AnyArg(), "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateRole(context.Background(), "u1", domain.RoleAdmin))
}

func TestUserRepository_UpdateRole_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users SET role").
		WithArgs(domain.RoleAdmin, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateRole(context.Background(), "missing", domain.RoleAdmin)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
