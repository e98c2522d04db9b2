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

// TokenRepository implements the revocation ledger over PostgreSQL. Every
// mutation is a single-row patch; invalidation is sticky and never reversed
// by any statement here.
type TokenRepository struct {
	db DB
}

// NewTokenRepository creates a new PostgreSQL-backed token ledger.
func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create persists a new token record.
func (r *TokenRepository) Create(ctx context.Context, rec *domain.TokenRecord) error {
	query := `
		INSERT INTO token_records (id, subject_id, access_token_id, refresh_token_id, issued_at, access_expires_at, refresh_expires_at, invalidated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.SubjectID,
		rec.AccessTokenID,
		rec.RefreshTokenID,
		rec.IssuedAt,
		rec.AccessExpiresAt,
		rec.RefreshExpiresAt,
		rec.Invalidated,
	)
	if err != nil {
		return fmt.Errorf("insert token record: %w", err)
	}

	return nil
}

// GetByAccessTokenID retrieves a record by its access token id (jti).
func (r *TokenRepository) GetByAccessTokenID(ctx context.Context, accessTokenID string) (*domain.TokenRecord, error) {
	query := tokenSelect + ` WHERE access_token_id = $1`
	return r.scanRecord(ctx, query, accessTokenID)
}

// GetByRefreshTokenID retrieves a record by its refresh token id.
func (r *TokenRepository) GetByRefreshTokenID(ctx context.Context, refreshTokenID string) (*domain.TokenRecord, error) {
	query := tokenSelect + ` WHERE refresh_token_id = $1`
	return r.scanRecord(ctx, query, refreshTokenID)
}

// RotateAccess patches the row identified by refreshTokenID with a new access
// token id and expiry. The NOT invalidated guard makes revocation sticky: a
// rotation racing an invalidation can never resurrect the row.
func (r *TokenRepository) RotateAccess(ctx context.Context, refreshTokenID, newAccessTokenID string, newAccessExpiresAt time.Time) error {
	query := `
		UPDATE token_records
		SET access_token_id = $1, access_expires_at = $2
		WHERE refresh_token_id = $3 AND NOT invalidated`

	ct, err := r.db.Exec(ctx, query, newAccessTokenID, newAccessExpiresAt, refreshTokenID)
	if err != nil {
		return fmt.Errorf("rotate access token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrTokenRevoked
	}

	return nil
}

// Invalidate flips the record to invalidated. No guard on the current flag,
// so invalidating twice is a no-op success.
func (r *TokenRepository) Invalidate(ctx context.Context, accessTokenID string) error {
	query := `UPDATE token_records SET invalidated = TRUE WHERE access_token_id = $1`

	ct, err := r.db.Exec(ctx, query, accessTokenID)
	if err != nil {
		return fmt.Errorf("invalidate token record: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("token record", accessTokenID)
	}

	return nil
}

// InvalidateBySubject invalidates every record for the subject. Each row is
// an independent patch; a partial failure leaves a partially revoked session
// set, which fails toward "more revoked".
func (r *TokenRepository) InvalidateBySubject(ctx context.Context, subjectID string) (int64, error) {
	query := `UPDATE token_records SET invalidated = TRUE WHERE subject_id = $1 AND NOT invalidated`

	ct, err := r.db.Exec(ctx, query, subjectID)
	if err != nil {
		return 0, fmt.Errorf("invalidate tokens for subject: %w", err)
	}

	return ct.RowsAffected(), nil
}

// DeleteExpired removes invalidated records and records whose both expiries
// are in the past.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM token_records
		WHERE invalidated OR (access_expires_at < $1 AND refresh_expires_at < $1)`

	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired token records: %w", err)
	}

	return ct.RowsAffected(), nil
}

const tokenSelect = `
	SELECT id, subject_id, access_token_id, refresh_token_id, issued_at, access_expires_at, refresh_expires_at, invalidated
	FROM token_records`

func (r *TokenRepository) scanRecord(ctx context.Context, query string, args ...any) (*domain.TokenRecord, error) {
	var rec domain.TokenRecord
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&rec.ID,
		&rec.SubjectID,
		&rec.AccessTokenID,
		&rec.RefreshTokenID,
		&rec.IssuedAt,
		&rec.AccessExpiresAt,
		&rec.RefreshExpiresAt,
		&rec.Invalidated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan token record: %w", err)
	}

	return &rec, nil
}
