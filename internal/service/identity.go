package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	"github.com/tylerfeldstein/portfolio-chat/internal/identity"
	"github.com/tylerfeldstein/portfolio-chat/internal/repository"
	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

// IdentityResolver is the external identity provider boundary.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*identity.Assertion, error)
}

// SessionRevoker is the slice of SessionService the identity service needs
// when a role change must kill existing sessions.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, subjectID string) (int64, error)
}

// IdentityService syncs external identities into the local user store and
// handles admin-gated user management.
type IdentityService struct {
	userRepo repository.UserRepository
	provider IdentityResolver
	sessions SessionRevoker
	logger   *slog.Logger
}

// NewIdentityService creates a new identity service.
func NewIdentityService(
	userRepo repository.UserRepository,
	provider IdentityResolver,
	sessions SessionRevoker,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		userRepo: userRepo,
		provider: provider,
		sessions: sessions,
		logger:   logger,
	}
}

// Sync resolves the external credential and lazily creates or refreshes the
// local user. The stored role always wins over anything the provider says.
func (s *IdentityService) Sync(ctx context.Context, credential string) (*domain.User, error) {
	if credential == "" {
		return nil, apperrors.Unauthenticated("no credential presented")
	}

	assertion, err := s.provider.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        assertion.SubjectID,
		Email:     assertion.Email,
		Name:      assertion.Name,
		AvatarURL: assertion.Picture,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}

	// Re-read so the caller sees the stored role, not the zero value.
	stored, err := s.userRepo.GetByID(ctx, assertion.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load synced user: %w", err)
	}

	s.logger.InfoContext(ctx, "identity synced",
		slog.String("subject_id", stored.ID),
		slog.String("role", stored.Role),
	)

	return stored, nil
}

// ListUsers returns all users. Admin only.
func (s *IdentityService) ListUsers(ctx context.Context, caller domain.Identity) ([]domain.User, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("admin role required")
	}
	return s.userRepo.List(ctx)
}

// AssignRole sets a user's role. Admin only. Existing sessions of the target
// are revoked so a stale role claim cannot outlive the change.
func (s *IdentityService) AssignRole(ctx context.Context, caller domain.Identity, subjectID, role string) error {
	if !caller.IsAdmin() {
		return apperrors.Forbidden("admin role required")
	}
	if !domain.IsValidRole(role) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}

	if err := s.userRepo.UpdateRole(ctx, subjectID, role); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, subjectID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after role change",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "role assigned",
		slog.String("subject_id", subjectID),
		slog.String("role", role),
		slog.String("assigned_by", caller.SubjectID),
	)

	return nil
}
