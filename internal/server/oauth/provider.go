// Package oauth implements the social login providers. Each provider turns
// an authorization code into the user's profile at that provider.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/server/config"
	"golang.org/x/oauth2"
)

// Profile is the identity a provider vouches for.
type Profile struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Avatar        string
}

// Provider is one social login backend.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Registry maps provider names (as used in routes) to providers.
type Registry map[string]Provider

// Get returns the named provider.
func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r[name]
	return p, ok
}

const defaultRequestTimeout = 30 * time.Second

// NewRegistry registers every provider that has a client id configured.
func NewRegistry(cfg *config.Config) Registry {
	client := &http.Client{Timeout: defaultRequestTimeout}
	r := Registry{}
	if cfg.GoogleClientID != "" {
		p := NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, client)
		r[p.Name()] = p
	}
	if cfg.GitHubClientID != "" {
		p := NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL, client)
		r[p.Name()] = p
	}
	return r
}

// base carries what both providers share: the oauth2 config and the HTTP
// client used for token exchange and API calls.
type base struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func (b *base) AuthCodeURL(state string) string {
	return b.config.AuthCodeURL(state)
}

func (b *base) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	token, err := b.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
func (b *base) getJSON(ctx context.Context, url, accessToken, accept string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", accept)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
