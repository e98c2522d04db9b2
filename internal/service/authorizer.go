package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
	"github.com/tylerfeldstein/portfolio-chat/internal/repository"
	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

// Action is a chat operation class for authorization purposes.
type Action string

const (
	// ActionRead covers listing and reading messages, unread counts, and
	// typing status.
	ActionRead Action = "read"

	// ActionWrite covers sending messages, marking read, and typing updates.
	ActionWrite Action = "write"

	// ActionManage covers rename and delete.
	ActionManage Action = "manage"
)

// Authorizer decides chat access. Admins bypass membership for read/write
// but manage still requires admin role or creatorship, so an admin can
// observe any conversation without being able to casually destroy one they
// did not create. Here admins may manage any chat.
type Authorizer struct {
	chatRepo repository.ChatRepository
}

// NewAuthorizer creates a new chat authorizer.
func NewAuthorizer(chatRepo repository.ChatRepository) *Authorizer {
	return &Authorizer{chatRepo: chatRepo}
}

// Authorize checks the identity against the chat for the action and returns
// the chat on success. A missing chat is NotFound for everyone, admin or
// not, so callers can distinguish "deleted underneath you" from "never had
// access".
func (a *Authorizer) Authorize(ctx context.Context, identity domain.Identity, chatID string, action Action) (*domain.Chat, error) {
	chat, err := a.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("chat", chatID)
		}
		return nil, fmt.Errorf("load chat: %w", err)
	}

	switch action {
	case ActionRead, ActionWrite:
		if identity.IsAdmin() || chat.HasParticipant(identity.SubjectID) {
			return chat, nil
		}
	case ActionManage:
		if identity.IsAdmin() || chat.CreatorID == identity.SubjectID {
			return chat, nil
		}
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	return nil, apperrors.Forbidden(fmt.Sprintf("not allowed to %s chat", action))
}
