package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
	"github.com/tylerfeldstein/portfolio-chat/pkg/logger"
	"github.com/tylerfeldstein/portfolio-chat/pkg/validator"

	"github.com/tylerfeldstein/portfolio-chat/internal/auth"
	"github.com/tylerfeldstein/portfolio-chat/internal/service"
)

// SessionHandler handles HTTP requests for session lifecycle endpoints.
type SessionHandler struct {
	identity *service.IdentityService
	sessions *service.SessionService
	cookies  *auth.CookieManager
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(
	identity *service.IdentityService,
	sessions *service.SessionService,
	cookies *auth.CookieManager,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{identity: identity, sessions: sessions, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// CreateSessionRequest is the JSON request body for session creation.
type CreateSessionRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// --- Response types ---

// SessionResponse describes the established session to the client. Tokens are
// never included; they travel only in the HTTP-only cookies.
type SessionResponse struct {
	User            any       `json:"user"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// RefreshResponse reports the new access token expiry after a rotation.
type RefreshResponse struct {
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// --- Handlers ---

// Create handles POST /api/v1/session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.identity.Sync(r.Context(), req.Credential)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	pair, err := h.sessions.Issue(r.Context(), user.ID, user.Role)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.cookies.SetPair(w, pair.AccessToken, pair.AccessExpiresAt, pair.RefreshToken, pair.RefreshExpiresAt)

	writeJSON(w, http.StatusCreated, response{
		Data: SessionResponse{
			User:            user,
			AccessExpiresAt: pair.AccessExpiresAt,
		},
	})
}

// Get handles GET /api/v1/session
//
// The auth middleware already verified the access token; this endpoint just
// echoes the established identity so clients can restore state on page load.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity.SubjectID == "" {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHENTICATED", Message: "no active session"},
		})
		return
	}

	writeJSON(w, http.StatusOK, response{Data: identity})
}

// Refresh handles POST /api/v1/session/refresh
//
// Rotation mints a new access token from the refresh cookie and rewrites only
// the access cookie. The refresh cookie keeps its original expiry, which caps
// total session length.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.cookies.ReadRefresh(r)
	if refreshToken == "" {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHENTICATED", Message: "no refresh token provided"},
		})
		return
	}

	accessToken, expiresAt, err := h.sessions.Rotate(r.Context(), refreshToken)
	if err != nil {
		// A dead refresh token means the session is over; clear both cookies
		// so the client stops retrying.
		if errors.Is(err, apperrors.ErrTokenRevoked) || errors.Is(err, apperrors.ErrTokenExpired) {
			h.cookies.ClearPair(w)
		}
		writeAppError(w, r, err)
		return
	}

	h.cookies.SetAccess(w, accessToken, expiresAt)

	writeJSON(w, http.StatusOK, response{Data: RefreshResponse{AccessExpiresAt: expiresAt}})
}

// Delete handles DELETE /api/v1/session
//
// Sign-out always clears both cookies, even when the presented token is
// expired or already revoked. The ledger write is best-effort from the
// client's point of view.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearPair(w)

	token := h.cookies.ReadAccess(r)
	if token == "" {
		token = bearerToken(r)
	}
	if token != "" {
		if err := h.sessions.Invalidate(r.Context(), token); err != nil {
			logger.FromContext(r.Context()).Warn("failed to invalidate session on sign-out",
				slog.String("error", err.Error()))
		}
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"status": "signed_out"}})
}
