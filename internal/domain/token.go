package domain

import (
	"time"
)

// TokenRecord is one ledger row per issued access/refresh token pair. Rows are
// patched in place on rotation and flipped to invalidated on revocation;
// invalidation is never reversed.
type TokenRecord struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	AccessTokenID    string    `json:"access_token_id"`
	RefreshTokenID   string    `json:"refresh_token_id"`
	IssuedAt         time.Time `json:"issued_at"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Invalidated      bool      `json:"invalidated"`
}

// Expired reports whether both tokens of the pair are past their expiry.
func (r *TokenRecord) Expired(now time.Time) bool {
	return now.After(r.AccessExpiresAt) && now.After(r.RefreshExpiresAt)
}

// TokenPair holds a signed access and refresh token pair with expiries.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
