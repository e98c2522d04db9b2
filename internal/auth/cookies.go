package auth

import (
	"net/http"
	"time"
)

// Cookie names are part of the wire contract with the frontend.
const (
	AccessCookieName  = "access-token"
	RefreshCookieName = "refresh-token"
)

// CookieManager binds the token pair to two HTTP-only cookies with
// independent lifetimes. Secure is off only in development so local HTTP
// testing works.
type CookieManager struct {
	secure bool
}

// NewCookieManager creates a CookieManager. Pass secure=true outside
// development.
func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{secure: secure}
}

// SetPair writes both token cookies. Max-age mirrors each token's expiry.
func (m *CookieManager) SetPair(w http.ResponseWriter, accessToken string, accessExpiresAt time.Time, refreshToken string, refreshExpiresAt time.Time) {
	m.SetAccess(w, accessToken, accessExpiresAt)
	http.SetCookie(w, m.cookie(RefreshCookieName, refreshToken, int(time.Until(refreshExpiresAt).Seconds())))
}

// SetAccess rewrites only the access token cookie. Used after a rotation,
// which never touches the refresh cookie.
func (m *CookieManager) SetAccess(w http.ResponseWriter, accessToken string, expiresAt time.Time) {
	http.SetCookie(w, m.cookie(AccessCookieName, accessToken, int(time.Until(expiresAt).Seconds())))
}

// ClearPair expires both cookies. Always clears both so a half-expired
// session never lingers client-side.
func (m *CookieManager) ClearPair(w http.ResponseWriter) {
	http.SetCookie(w, m.expired(AccessCookieName))
	http.SetCookie(w, m.expired(RefreshCookieName))
}

// Present reports cookie presence without decoding either token.
func (m *CookieManager) Present(r *http.Request) (hasAccess, hasRefresh bool) {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		hasAccess = true
	}
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		hasRefresh = true
	}
	return hasAccess, hasRefresh
}

// ReadAccess returns the access token cookie value, or "" if absent.
func (m *CookieManager) ReadAccess(r *http.Request) string {
	c, err := r.Cookie(AccessCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ReadRefresh returns the refresh token cookie value, or "" if absent.
func (m *CookieManager) ReadRefresh(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (m *CookieManager) cookie(name, value string, maxAge int) *http.Cookie {
	if maxAge < 0 {
		maxAge = 0
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (m *CookieManager) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
