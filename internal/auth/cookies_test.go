package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSetPair_Flags(t *testing.T) {
	mgr := NewCookieManager(true)
	rec := httptest.NewRecorder()

	now := time.Now()
	mgr.SetPair(rec, "access-val", now.Add(15*time.Minute), "refresh-val", now.Add(24*time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	access := findCookie(t, cookies, AccessCookieName)
	assert.Equal(t, "access-val", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, "/", access.Path)
	assert.InDelta(t, 15*60, access.MaxAge, 5)

	refresh := findCookie(t, cookies, RefreshCookieName)
	assert.Equal(t, "refresh-val", refresh.Value)
	assert.True(t, refresh.HttpOnly)
	assert.InDelta(t, 24*60*60, refresh.MaxAge, 5)
}

func TestSetPair_InsecureInDevelopment(t *testing.T) {
	mgr := NewCookieManager(false)
	rec := httptest.NewRecorder()

	now := time.Now()
	mgr.SetPair(rec, "a", now.Add(time.Minute), "r", now.Add(time.Hour))

	for _, c := range rec.Result().Cookies() {
		assert.False(t, c.Secure)
		assert.True(t, c.HttpOnly)
	}
}

func TestClearPair_AlwaysClearsBoth(t *testing.T) {
	mgr := NewCookieManager(true)
	rec := httptest.NewRecorder()

	mgr.ClearPair(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestPresent(t *testing.T) {
	mgr := NewCookieManager(true)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	hasAccess, hasRefresh := mgr.Present(r)
	assert.False(t, hasAccess)
	assert.False(t, hasRefresh)

	r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tok"})
	hasAccess, hasRefresh = mgr.Present(r)
	assert.False(t, hasAccess)
	assert.True(t, hasRefresh)

	r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "tok"})
	hasAccess, hasRefresh = mgr.Present(r)
	assert.True(t, hasAccess)
	assert.True(t, hasRefresh)
}

func TestReadAccessAndRefresh(t *testing.T) {
	mgr := NewCookieManager(true)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, mgr.ReadAccess(r))
	assert.Empty(t, mgr.ReadRefresh(r))

	r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "at"})
	r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "rt"})
	assert.Equal(t, "at", mgr.ReadAccess(r))
	assert.Equal(t, "rt", mgr.ReadRefresh(r))
}

func TestSetPair_PastExpiryClampsToZero(t *testing.T) {
	mgr := NewCookieManager(true)
	rec := httptest.NewRecorder()

	past := time.Now().Add(-time.Minute)
	mgr.SetPair(rec, "a", past, "r", past)

	for _, c := range rec.Result().Cookies() {
		assert.GreaterOrEqual(t, c.MaxAge, 0)
	}
}
