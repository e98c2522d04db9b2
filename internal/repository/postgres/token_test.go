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

func newTokenTestFixture(t *testing.T) (*TokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewTokenRepository(mock)
	return repo, mock
}

func sampleTokenRecord() *domain.TokenRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.TokenRecord{
		ID:               "rec-1",
		SubjectID:        "u1",
		AccessTokenID:    "jti-1",
		RefreshTokenID:   "rt-1",
		IssuedAt:         now,
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(24 * time.Hour),
		Invalidated:      false,
	}
}

func tokenColumns() []string {
	return []string{
		"id", "subject_id", "access_token_id", "refresh_token_id",
		"issued_at", "access_expires_at", "refresh_expires_at", "invalidated",
	}
}

func tokenRow(rec *domain.TokenRecord) *pgxmock.Rows {
	return pgxmock.NewRows(tokenColumns()).AddRow(
		rec.ID, rec.SubjectID, rec.AccessTokenID, rec.RefreshTokenID,
		rec.IssuedAt, rec.AccessExpiresAt, rec.RefreshExpiresAt, rec.Invalidated,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestTokenRepository_Create_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()

	mock.ExpectExec("INSERT INTO token_records").
		WithArgs(
			rec.ID, rec.SubjectID, rec.AccessTokenID, rec.RefreshTokenID,
			rec.IssuedAt, rec.AccessExpiresAt, rec.RefreshExpiresAt, rec.Invalidated,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), rec)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Create_DatabaseError(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()

	mock.ExpectExec("INSERT INTO token_records").
		WithArgs(
			rec.ID, rec.SubjectID, rec.AccessTokenID, rec.RefreshTokenID,
			rec.IssuedAt, rec.AccessExpiresAt, rec.RefreshExpiresAt, rec.Invalidated,
		).
		WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), rec)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert token record")
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestTokenRepository_GetByAccessTokenID_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()

	mock.ExpectQuery("SELECT (.+) FROM token_records").
		WithArgs(rec.AccessTokenID).
		WillReturnRows(tokenRow(rec))

	got, err := repo.GetByAccessTokenID(context.Background(), rec.AccessTokenID)

	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestTokenRepository_GetByAccessTokenID_NotFound(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM token_records").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(tokenColumns()))

	got, err := repo.GetByAccessTokenID(context.Background(), "missing")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTokenRepository_GetByRefreshTokenID_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	rec := sampleTokenRecord()

	mock.ExpectQuery("SELECT (.+) FROM token_records").
		WithArgs(rec.RefreshTokenID).
		WillReturnRows(tokenRow(rec))

	got, err := repo.GetByRefreshTokenID(context.Background(), rec.RefreshTokenID)

	require.NoError(t, err)
	assert.Equal(t, rec.RefreshTokenID, got.RefreshTokenID)
}

// ---------------------------------------------------------------------------
// RotateAccess
// ---------------------------------------------------------------------------

func TestTokenRepository_RotateAccess_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	newExpiry := time.Now().UTC().Add(15 * time.Minute)

	mock.ExpectExec("UPDATE token_records").
		WithArgs("jti-2", newExpiry, "rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.RotateAccess(context.Background(), "rt-1", "jti-2", newExpiry)

	assert.NoError(t, err)
}

func TestTokenRepository_RotateAccess_InvalidatedRowIsRevoked(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	newExpiry := time.Now().UTC().Add(15 * time.Minute)

	// The NOT invalidated guard means an invalidated row matches zero rows.
	mock.ExpectExec("UPDATE token_records").
		WithArgs("jti-2", newExpiry, "rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.RotateAccess(context.Background(), "rt-1", "jti-2", newExpiry)

	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)
}

// ---------------------------------------------------------------------------
// Invalidate
// ---------------------------------------------------------------------------

func TestTokenRepository_Invalidate_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE token_records SET invalidated").
		WithArgs("jti-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Invalidate(context.Background(), "jti-1")

	assert.NoError(t, err)
}

func TestTokenRepository_Invalidate_TwiceIsNoopSuccess(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	// No guard on the flag: the second call still matches the row.
	mock.ExpectExec("UPDATE token_records SET invalidated").
		WithArgs("jti-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE token_records SET invalidated").
		WithArgs("jti-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.Invalidate(context.Background(), "jti-1"))
	assert.NoError(t, repo.Invalidate(context.Background(), "jti-1"))
}

func TestTokenRepository_Invalidate_NotFound(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE token_records SET invalidated").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Invalidate(context.Background(), "missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// InvalidateBySubject / DeleteExpired
// ---------------------------------------------------------------------------

func TestTokenRepository_InvalidateBySubject(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE token_records SET invalidated").
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.InvalidateBySubject(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTokenRepository_InvalidateBySubject_NoSessions(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE token_records SET invalidated").
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := repo.InvalidateBySubject(context.Background(), "u1")

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC()

	mock.ExpectExec("DELETE FROM token_records").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := repo.DeleteExpired(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
