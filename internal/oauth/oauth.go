// Package oauth consumes third-party authorization codes. It is a client
// only: no server-side OAuth flows are implemented here. Provider calls are
// bounded by a per-call timeout with a small bounded retry on transient
// network failures; 4xx responses are never retried.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Upstream failure classification. The caller maps these onto user-facing
// messaging: timeouts and network errors are worth retrying, a rejection
// means "try another method".
var (
	ErrUpstreamTimeout  = errors.New("identity provider timed out")
	ErrUpstreamNetwork  = errors.New("identity provider unreachable")
	ErrUpstreamRejected = errors.New("identity provider rejected the request")
)

// Identity is the provider-attested result of a successful code exchange.
type Identity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// ProviderConfig describes one upstream provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenURL     string
	UserURL      string
}

// Known provider names.
const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

// Client exchanges authorization codes for provider identities.
type Client struct {
	http      *http.Client
	providers map[string]ProviderConfig
	attempts  int
}

// NewClient builds a client with a 15 second per-call timeout.
func NewClient(providers map[string]ProviderConfig) *Client {
	return &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		providers: providers,
		attempts:  3,
	}
}

// Exchange trades an authorization code for the provider's identity record.
func (c *Client) Exchange(ctx context.Context, provider, code string) (Identity, error) {
	cfg, ok := c.providers[provider]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown provider %q", ErrUpstreamRejected, provider)
	}

	token, err := c.fetchToken(ctx, provider, cfg, code)
	if err != nil {
		return Identity{}, err
	}
	return c.fetchIdentity(ctx, provider, cfg, token)
}

func (c *Client) fetchToken(ctx context.Context, provider string, cfg ProviderConfig, code string) (string, error) {
	form := url.Values{
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"code":          {code},
	}
	if provider == ProviderGoogle {
		form.Set("grant_type", "authorization_code")
		form.Set("redirect_uri", cfg.RedirectURL)
	}

	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL,
			strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token in response", ErrUpstreamRejected)
	}
	return payload.AccessToken, nil
}

func (c *Client) fetchIdentity(ctx context.Context, provider string, cfg ProviderConfig, token string) (Identity, error) {
	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return Identity{}, err
	}

	switch provider {
	case ProviderGitHub:
		var u struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.Unmarshal(body, &u); err != nil || u.ID == 0 {
			return Identity{}, fmt.Errorf("%w: malformed user payload", ErrUpstreamRejected)
		}
		name := u.Name
		if name == "" {
			name = u.Login
		}
		return Identity{
			Provider:   provider,
			ProviderID: strconv.FormatInt(u.ID, 10),
			Email:      u.Email,
			Name:       name,
			AvatarURL:  u.AvatarURL,
		}, nil
	case ProviderGoogle:
		var u struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.Unmarshal(body, &u); err != nil || u.ID == "" {
			return Identity{}, fmt.Errorf("%w: malformed user payload", ErrUpstreamRejected)
		}
		return Identity{
			Provider:   provider,
			ProviderID: u.ID,
			Email:      u.Email,
			Name:       u.Name,
			AvatarURL:  u.Picture,
		}, nil
	default:
		return Identity{}, fmt.Errorf("%w: unknown provider %q", ErrUpstreamRejected, provider)
	}
}

// do runs a request with bounded retries on transient failures only. A 4xx
// response is a rejection and returns immediately; 5xx and network errors
// are retried up to the attempt budget.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = classifyNetErr(err)
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d", ErrUpstreamNetwork, resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: status %d", ErrUpstreamRejected, resp.StatusCode)
		case readErr != nil:
			lastErr = fmt.Errorf("%w: %v", ErrUpstreamNetwork, readErr)
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func classifyNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamNetwork, err)
}
