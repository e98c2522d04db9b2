package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
)

const issuer = "portfolio-chat"

// AccessClaims represents the JWT claims for an access token. The token id
// (jti) is carried in RegisteredClaims.ID and checked against the revocation
// ledger on every verification.
type AccessClaims struct {
	UserID   string `json:"user_id"`
	UserRole string `json:"user_role"`
	jwt.RegisteredClaims
}

// RefreshClaims represents the JWT claims for a refresh token. TokenID is the
// ledger-side refresh token identifier, distinct from the access jti.
type RefreshClaims struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies the access/refresh token pair. Both tokens
// are signed with the same symmetric secret.
type TokenSigner struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewTokenSigner creates a TokenSigner with the given secret and expiry durations.
func NewTokenSigner(secret string, accessExpiry, refreshExpiry time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// AccessExpiry returns the access token lifetime.
func (s *TokenSigner) AccessExpiry() time.Duration { return s.accessExpiry }

// RefreshExpiry returns the refresh token lifetime.
func (s *TokenSigner) RefreshExpiry() time.Duration { return s.refreshExpiry }

// SignAccess creates a signed access token for the subject with the given jti.
// It returns the token and its expiry time.
func (s *TokenSigner) SignAccess(subjectID, role, jti string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.accessExpiry)
	claims := &AccessClaims{
		UserID:   subjectID,
		UserRole: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

// SignRefresh creates a signed refresh token for the subject with the given
// ledger token id. It returns the token and its expiry time.
func (s *TokenSigner) SignRefresh(subjectID, tokenID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.refreshExpiry)
	claims := &RefreshClaims{
		UserID:  subjectID,
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return signed, expiresAt, nil
}

// VerifyAccess parses and validates an access token. Expired tokens fail with
// ErrTokenExpired; any other verification failure maps to ErrTokenInvalid.
func (s *TokenSigner) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired("access token expired")
		}
		return nil, apperrors.TokenInvalid("invalid access token")
	}
	if !token.Valid {
		return nil, apperrors.TokenInvalid("invalid access token")
	}
	return claims, nil
}

// VerifyAccessAllowExpired parses an access token but tolerates expiry, so a
// logout with an already-expired token can still resolve its jti for
// revocation. Signature failures still fail.
func (s *TokenSigner) VerifyAccessAllowExpired(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return nil, apperrors.TokenInvalid("invalid access token")
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token.
func (s *TokenSigner) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired("refresh token expired")
		}
		return nil, apperrors.TokenInvalid("invalid refresh token")
	}
	if !token.Valid {
		return nil, apperrors.TokenInvalid("invalid refresh token")
	}
	return claims, nil
}

func (s *TokenSigner) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}
