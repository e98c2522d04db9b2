// Package sessionclient is a Go client for the session API. It owns the
// client side of the session lifecycle: establishing a session from a
// provider credential, keeping the access cookie fresh through silent
// rotation, and exposing an explicit state machine instead of ambient flags.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the session lifecycle state.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateSyncing         State = "syncing"
	StateSynced          State = "synced"
	StateError           State = "error"
)

// ErrNoSession is returned when no valid session exists and rotation could
// not produce one. The caller should prompt for re-authentication.
var ErrNoSession = errors.New("no valid session")

// BackoffPolicy controls retry spacing for transient sync failures.
type BackoffPolicy struct {
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	MaxRetries  int
}

// DefaultBackoffPolicy returns the standard policy: 3 retries starting at
// 500ms, doubling, capped at 5s.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		MaxRetries:  3,
	}
}

// Wait returns the pause before the given retry attempt (0-based).
func (p BackoffPolicy) Wait(attempt int) time.Duration {
	wait := time.Duration(float64(p.InitialWait) * pow(p.Multiplier, attempt))
	if wait > p.MaxWait {
		return p.MaxWait
	}
	return wait
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

// Identity is the verified caller identity echoed by the session API.
type Identity struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
}

// Config holds session client configuration.
type Config struct {
	// BaseURL of the session API, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient carries the session cookies. When nil a client with an
	// in-memory cookie jar is used.
	HTTPClient *http.Client

	// RotateLead is how long before access expiry a silent rotation is
	// scheduled. Default 1 minute.
	RotateLead time.Duration

	// MinVerifyInterval debounces redundant verification calls triggered in
	// quick succession. Default 5 seconds.
	MinVerifyInterval time.Duration

	Backoff BackoffPolicy
}

// Client is a session API client. All methods are safe for concurrent use.
type Client struct {
	baseURL           string
	http              *http.Client
	logger            *slog.Logger
	rotateLead        time.Duration
	minVerifyInterval time.Duration
	backoff           BackoffPolicy

	group singleflight.Group

	mu          sync.Mutex
	state       State
	identity    *Identity
	lastVerify  time.Time
	rotateTimer *time.Timer
}

// New creates a session client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("sessionclient: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	if cfg.RotateLead <= 0 {
		cfg.RotateLead = time.Minute
	}
	if cfg.MinVerifyInterval <= 0 {
		cfg.MinVerifyInterval = 5 * time.Second
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoffPolicy()
	}

	return &Client{
		baseURL:           cfg.BaseURL,
		http:              httpClient,
		logger:            logger,
		rotateLead:        cfg.RotateLead,
		minVerifyInterval: cfg.MinVerifyInterval,
		backoff:           cfg.Backoff,
		state:             StateUnauthenticated,
	}, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the last verified identity, or nil when not synced.
func (c *Client) Identity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// Establish exchanges a provider credential for a session. Transient server
// failures are retried per the backoff policy; a rejected credential is not.
func (c *Client) Establish(ctx context.Context, credential string) (*Identity, error) {
	c.setState(StateSyncing)

	body, err := json.Marshal(map[string]string{"credential": credential})
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.backoff.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.setError(ctx.Err())
				return nil, ctx.Err()
			case <-time.After(c.backoff.Wait(attempt - 1)):
			}
		}

		var created struct {
			User struct {
				ID   string `json:"id"`
				Role string `json:"role"`
			} `json:"user"`
			AccessExpiresAt time.Time `json:"access_expires_at"`
		}
		status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/session", bytes.NewReader(body), &created)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case status == http.StatusCreated:
			identity := Identity{SubjectID: created.User.ID, Role: created.User.Role}
			c.setSynced(identity, created.AccessExpiresAt)
			return &identity, nil
		case status >= 500:
			lastErr = fmt.Errorf("session create failed with status %d", status)
			continue
		default:
			// 4xx means the credential itself was rejected; retrying cannot help.
			err := fmt.Errorf("session create rejected with status %d: %w", status, ErrNoSession)
			c.setError(err)
			return nil, err
		}
	}

	c.setError(lastErr)
	return nil, lastErr
}

// Verify checks the current session against the server. Calls within the
// minimum re-verification interval return the cached identity so rapid UI
// re-renders do not hammer the API. A failed verification falls back to one
// rotation attempt before giving up.
func (c *Client) Verify(ctx context.Context) (*Identity, error) {
	c.mu.Lock()
	if c.state == StateSynced && c.identity != nil && time.Since(c.lastVerify) < c.minVerifyInterval {
		id := *c.identity
		c.mu.Unlock()
		return &id, nil
	}
	c.mu.Unlock()

	var verified struct {
		SubjectID string `json:"subject_id"`
		Role      string `json:"role"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/v1/session", nil, &verified)
	if err != nil {
		c.setError(err)
		return nil, err
	}

	if status == http.StatusOK {
		identity := Identity{SubjectID: verified.SubjectID, Role: verified.Role}
		c.mu.Lock()
		c.state = StateSynced
		c.identity = &identity
		c.lastVerify = time.Now()
		c.mu.Unlock()
		return &identity, nil
	}

	if status == http.StatusUnauthorized {
		if _, err := c.Rotate(ctx); err != nil {
			c.clearSession()
			return nil, ErrNoSession
		}
		// The rotation succeeded; one more verification settles the identity.
		return c.verifyAfterRotate(ctx)
	}

	err = fmt.Errorf("session verify failed with status %d", status)
	c.setError(err)
	return nil, err
}

func (c *Client) verifyAfterRotate(ctx context.Context) (*Identity, error) {
	var verified Identity
	status, err := c.doJSON(ctx, http.MethodGet, "/api/v1/session", nil, &verified)
	if err != nil {
		c.setError(err)
		return nil, err
	}
	if status != http.StatusOK {
		c.clearSession()
		return nil, ErrNoSession
	}
	c.mu.Lock()
	c.state = StateSynced
	c.identity = &verified
	c.lastVerify = time.Now()
	c.mu.Unlock()
	return &verified, nil
}

// Rotate refreshes the access token. Concurrent callers share one in-flight
// rotation; duplicates would only waste a ledger write and race the cookie.
func (c *Client) Rotate(ctx context.Context) (time.Time, error) {
	v, err, _ := c.group.Do("rotate", func() (any, error) {
		var rotated struct {
			AccessExpiresAt time.Time `json:"access_expires_at"`
		}
		status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/session/refresh", nil, &rotated)
		if err != nil {
			return time.Time{}, err
		}
		if status != http.StatusOK {
			return time.Time{}, fmt.Errorf("rotation failed with status %d: %w", status, ErrNoSession)
		}
		c.scheduleRotation(rotated.AccessExpiresAt)
		return rotated.AccessExpiresAt, nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

// SignOut invalidates the session server-side and resets the state machine.
func (c *Client) SignOut(ctx context.Context) error {
	status, err := c.doJSON(ctx, http.MethodDelete, "/api/v1/session", nil, nil)
	c.clearSession()
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("sign-out failed with status %d", status)
	}
	return nil
}

// Close stops the rotation timer. The client is unusable afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rotateTimer != nil {
		c.rotateTimer.Stop()
		c.rotateTimer = nil
	}
}

// scheduleRotation arms a silent rotation shortly before the access token
// expires. An already-armed timer is replaced.
func (c *Client) scheduleRotation(expiresAt time.Time) {
	wait := time.Until(expiresAt) - c.rotateLead
	if wait < 0 {
		wait = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rotateTimer != nil {
		c.rotateTimer.Stop()
	}
	c.rotateTimer = time.AfterFunc(wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.Rotate(ctx); err != nil {
			if c.logger != nil {
				c.logger.Warn("silent session rotation failed", slog.String("error", err.Error()))
			}
			c.clearSession()
		}
	})
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setSynced(identity Identity, accessExpiresAt time.Time) {
	c.mu.Lock()
	c.state = StateSynced
	c.identity = &identity
	c.lastVerify = time.Now()
	c.mu.Unlock()
	c.scheduleRotation(accessExpiresAt)
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.mu.Unlock()
	if c.logger != nil && err != nil {
		c.logger.Warn("session sync failed", slog.String("error", err.Error()))
	}
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.state = StateUnauthenticated
	c.identity = nil
	if c.rotateTimer != nil {
		c.rotateTimer.Stop()
		c.rotateTimer = nil
	}
	c.mu.Unlock()
}

// doJSON performs a request and decodes the envelope's data payload into out
// when the response carries one.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode payload: %w", err)
		}
	}
	return resp.StatusCode, nil
}
