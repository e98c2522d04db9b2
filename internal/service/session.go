package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tylerfeldstein/portfolio-chat/internal/auth"
	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	"github.com/tylerfeldstein/portfolio-chat/internal/event"
	"github.com/tylerfeldstein/portfolio-chat/internal/repository"
	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

// SessionService mints, verifies, rotates, and revokes token pairs against
// the revocation ledger.
type SessionService struct {
	tokenRepo repository.TokenRepository
	userRepo  repository.UserRepository
	signer    *auth.TokenSigner
	producer  *event.Producer
	logger    *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(
	tokenRepo repository.TokenRepository,
	userRepo repository.UserRepository,
	signer *auth.TokenSigner,
	producer *event.Producer,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		signer:    signer,
		producer:  producer,
		logger:    logger,
	}
}

// Issue mints a token pair for the subject and persists the ledger record
// before returning. A ledger write failure is fatal to the call: no token is
// handed out without a durable record behind it.
func (s *SessionService) Issue(ctx context.Context, subjectID, role string) (*domain.TokenPair, error) {
	if subjectID == "" {
		return nil, apperrors.InvalidInput("subject id is required")
	}
	role = domain.NormalizeRole(role)

	jti := uuid.NewString()
	refreshID := uuid.NewString()

	accessToken, accessExpiresAt, err := s.signer.SignAccess(subjectID, role, jti)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExpiresAt, err := s.signer.SignRefresh(subjectID, refreshID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	rec := &domain.TokenRecord{
		ID:               uuid.NewString(),
		SubjectID:        subjectID,
		AccessTokenID:    jti,
		RefreshTokenID:   refreshID,
		IssuedAt:         time.Now().UTC(),
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}
	if err := s.tokenRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist token record: %w", err)
	}

	s.logger.InfoContext(ctx, "session issued",
		slog.String("subject_id", subjectID),
		slog.String("role", role),
	)

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Verify checks signature and expiry first, then consults the ledger by jti.
// A forged token never reaches the ledger; an expired one fails before the
// round trip. A missing row, a subject mismatch, or an invalidated row all
// fail as revoked.
func (s *SessionService) Verify(ctx context.Context, accessToken string) (*domain.Identity, error) {
	claims, err := s.signer.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	rec, err := s.tokenRepo.GetByAccessTokenID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenRevoked("token not in ledger")
		}
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if rec.Invalidated || rec.SubjectID != claims.UserID {
		return nil, apperrors.TokenRevoked("token invalidated")
	}

	return &domain.Identity{
		SubjectID: claims.UserID,
		Role:      domain.NormalizeRole(claims.UserRole),
	}, nil
}

// Rotate mints a fresh access token from a valid refresh token, patching the
// same ledger row. The role is re-read from the user store so a promotion or
// demotion lands on the next rotation, not only on full re-authentication.
// The refresh token itself is not rotated.
func (s *SessionService) Rotate(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.signer.VerifyRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}

	rec, err := s.tokenRepo.GetByRefreshTokenID(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", time.Time{}, apperrors.TokenRevoked("refresh token not in ledger")
		}
		return "", time.Time{}, fmt.Errorf("ledger lookup: %w", err)
	}
	if rec.Invalidated || rec.SubjectID != claims.UserID {
		return "", time.Time{}, apperrors.TokenRevoked("refresh token invalidated")
	}

	user, err := s.userRepo.GetByID(ctx, rec.SubjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", time.Time{}, apperrors.Unauthenticated("subject no longer exists")
		}
		return "", time.Time{}, fmt.Errorf("load subject: %w", err)
	}

	newJTI := uuid.NewString()
	accessToken, accessExpiresAt, err := s.signer.SignAccess(rec.SubjectID, domain.NormalizeRole(user.Role), newJTI)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	if err := s.tokenRepo.RotateAccess(ctx, claims.TokenID, newJTI, accessExpiresAt); err != nil {
		// A row invalidated between the lookup and the patch stays revoked.
		return "", time.Time{}, err
	}

	s.logger.DebugContext(ctx, "session rotated",
		slog.String("subject_id", rec.SubjectID),
	)

	return accessToken, accessExpiresAt, nil
}

// Invalidate revokes the pair behind the given access token. Expired tokens
// are accepted so a late logout still lands; forged ones are not.
func (s *SessionService) Invalidate(ctx context.Context, accessToken string) error {
	claims, err := s.signer.VerifyAccessAllowExpired(accessToken)
	if err != nil {
		return err
	}

	if err := s.tokenRepo.Invalidate(ctx, claims.ID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "session invalidated",
		slog.String("subject_id", claims.UserID),
	)

	return nil
}

// RevokeAll invalidates every session of the subject and publishes a
// session.revoked event. Each row is an independent patch; a partial failure
// leaves the set more revoked, never less.
func (s *SessionService) RevokeAll(ctx context.Context, subjectID string) (int64, error) {
	n, err := s.tokenRepo.InvalidateBySubject(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	if n > 0 {
		if err := s.producer.PublishSessionRevoked(ctx, subjectID, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish session.revoked event",
				slog.String("subject_id", subjectID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "sessions revoked",
		slog.String("subject_id", subjectID),
		slog.Int64("count", n),
	)

	return n, nil
}

// SweepExpired garbage-collects invalidated and fully expired ledger rows.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.tokenRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep token records: %w", err)
	}

	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired token records",
			slog.Int64("count", n),
		)
	}

	return n, nil
}
