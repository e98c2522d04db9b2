// Package identity talks to the external identity provider. The provider is
// an opaque authenticator: given a bearer credential it yields a stable
// subject identifier and optional profile claims.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/tylerfeldstein/portfolio-chat/pkg/errors"
	"github.com/tylerfeldstein/portfolio-chat/pkg/httpclient"
)

// Assertion is the profile the provider vouches for.
type Assertion struct {
	SubjectID string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

// Provider resolves bearer credentials against the identity provider's
// userinfo endpoint, behind a circuit breaker.
type Provider struct {
	baseURL string
	client  *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// NewProvider creates a Provider for the given base URL.
func NewProvider(baseURL string, client *httpclient.CircuitBreakerClient, logger *slog.Logger) *Provider {
	return &Provider{
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Resolve exchanges a bearer credential for the subject's assertion. An
// unrecognized credential maps to ErrUnauthenticated; provider outages
// surface as plain errors for the caller to retry.
func (p *Provider) Resolve(ctx context.Context, credential string) (*Assertion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/oauth2/userinfo", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.Unauthenticated("identity provider rejected credential")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read userinfo response: %w", err)
	}

	var assertion Assertion
	if err := json.Unmarshal(body, &assertion); err != nil {
		return nil, fmt.Errorf("decode userinfo response: %w", err)
	}
	if assertion.SubjectID == "" {
		return nil, apperrors.Unauthenticated("identity provider returned no subject")
	}

	p.logger.DebugContext(ctx, "resolved identity assertion",
		slog.String("subject_id", assertion.SubjectID),
	)

	return &assertion, nil
}
