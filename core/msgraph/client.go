package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/planbord/backend/core"
)

const (
	// DefaultAuthState is the CSRF state used when the caller supplies none.
	DefaultAuthState = "planning_bord_auth"

	scope = "https://graph.microsoft.com/.default"

	defaultExpiresIn = 3600
)

// Client drives the OAuth2 lifecycle against the Microsoft identity platform
// and authenticates Graph API calls with the resulting bearer token.
//
// It moves through four states: unconfigured (missing app credentials),
// unauthenticated (no usable token), authenticated (token valid), and expired
// (token held but past expiry; Refresh moves it back to authenticated).
// Network failures are logged and reported as a false return, never raised.
type Client struct {
	conf   *core.Config
	store  TokenStore
	logger core.Logger
	client *http.Client

	mu    sync.Mutex
	token Token
}

func NewClient(conf *core.Config, store TokenStore, logger core.Logger) *Client {
	return &Client{
		conf:   conf,
		store:  store,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Initialize loads any persisted token and tries to make it usable:
// a valid token is verified against Graph, an expired one is refreshed.
// Returns true when the client ends up authenticated.
func (c *Client) Initialize(ctx context.Context) bool {
	if !c.IsConfigured() {
		c.logger.Warn("microsoft 365 integration not configured")
		return false
	}

	tok, err := c.store.Load()
	if err != nil {
		c.logger.Error(fmt.Sprintf("loading microsoft tokens: %v", err), err)
	}
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()

	if tok.Valid(time.Now().UTC()) && c.ValidateToken(ctx) {
		c.logger.Info("microsoft 365 client ready")
		return true
	}
	if tok.HasRefreshToken() && c.Refresh(ctx) {
		c.logger.Info("microsoft 365 client ready (token refreshed)")
		return true
	}

	c.logger.Info("microsoft 365 client requires authentication")
	return false
}

// IsConfigured is true iff the app registration credentials are both set.
func (c *Client) IsConfigured() bool {
	return c.conf.Microsoft.Configured()
}

// IsAuthenticated is a pure check on the held token; it performs no I/O.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.Valid(time.Now().UTC())
}

// Token returns a snapshot of the current token record.
func (c *Client) Token() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// AuthURL builds the authorization-request URL for the browser redirect.
// No network I/O is performed.
func (c *Client) AuthURL(state string) (string, error) {
	if !c.IsConfigured() {
		return "", core.NewFailuref(core.NotConfigured, "microsoft 365 client id/secret not set")
	}
	if state == "" {
		state = DefaultAuthState
	}

	params := url.Values{
		"client_id":     {c.conf.Microsoft.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {c.conf.Microsoft.RedirectURI},
		"scope":         {scope},
		"state":         {state},
	}
	return c.conf.Microsoft.AuthBaseURL() + "/authorize?" + params.Encode(), nil
}

// ExchangeCode trades an authorization code for a token. On failure the
// previously held token is left untouched.
func (c *Client) ExchangeCode(ctx context.Context, code string) bool {
	form := url.Values{
		"code":       {code},
		"grant_type": {"authorization_code"},
	}
	if err := c.requestToken(ctx, form, false); err != nil {
		c.logger.Error(fmt.Sprintf("token exchange failed: %v", err), err)
		return false
	}
	c.logger.Info("access token obtained")
	return true
}

// Refresh trades the stored refresh token for a fresh access token.
// It is a no-op returning false when no refresh token is held.
func (c *Client) Refresh(ctx context.Context) bool {
	tok := c.Token()
	if !tok.HasRefreshToken() {
		return false
	}

	form := url.Values{
		"refresh_token": {tok.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	if err := c.requestToken(ctx, form, true); err != nil {
		c.logger.Error(fmt.Sprintf("token refresh failed: %v", err), err)
		return false
	}
	c.logger.Info("access token refreshed")
	return true
}

// ValidateToken probes the Graph "me" endpoint with the bearer token.
// Unlike IsAuthenticated, this performs a network round trip.
func (c *Client) ValidateToken(ctx context.Context) bool {
	tok := c.Token()
	if tok.AccessToken == "" {
		return false
	}

	resp, err := c.bearerGet(ctx, c.conf.Microsoft.GraphBaseURL+"/me", tok.AccessToken)
	if err != nil {
		c.logger.Error(fmt.Sprintf("token validation failed: %v", err), err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// UserInfo fetches the connected account's profile from Graph.
func (c *Client) UserInfo(ctx context.Context) (map[string]interface{}, error) {
	tok := c.Token()
	if !tok.Valid(time.Now().UTC()) {
		return nil, core.NewFailuref(core.Unauthenticated, "no valid access token")
	}

	resp, err := c.bearerGet(ctx, c.conf.Microsoft.GraphBaseURL+"/me", tok.AccessToken)
	if err != nil {
		return nil, core.NewFailure(core.NetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, core.NewFailuref(core.RemoteRejected, "user info request: status %d", resp.StatusCode)
	}

	var info map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "decoding user info")
	}
	return info, nil
}

// Disconnect drops the token from memory and persisted storage.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.token = Token{}
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Error(fmt.Sprintf("clearing microsoft tokens: %v", err), err)
	}
	c.logger.Info("disconnected from microsoft 365")
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// requestToken performs a token-endpoint POST and swaps the token record in.
// keepRefresh retains the current refresh token when the provider does not
// rotate it. The token lock is never held across the network call.
func (c *Client) requestToken(ctx context.Context, form url.Values, keepRefresh bool) error {
	if !c.IsConfigured() {
		return core.NewFailuref(core.NotConfigured, "microsoft 365 client id/secret not set")
	}

	form.Set("client_id", c.conf.Microsoft.ClientID)
	form.Set("client_secret", c.conf.Microsoft.ClientSecret)
	form.Set("redirect_uri", c.conf.Microsoft.RedirectURI)
	form.Set("scope", scope)

	endpoint := c.conf.Microsoft.AuthBaseURL() + "/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "creating token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return core.NewFailure(core.NetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return core.NewFailuref(core.RemoteRejected, "token endpoint: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return errors.Wrap(err, "decoding token response")
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = defaultExpiresIn
	}

	tok := Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}

	c.mu.Lock()
	if keepRefresh && tok.RefreshToken == "" {
		tok.RefreshToken = c.token.RefreshToken
	}
	c.token = tok
	c.mu.Unlock()

	if err := c.store.Save(tok); err != nil {
		c.logger.Warn(fmt.Sprintf("persisting microsoft tokens: %v", err), err)
	}
	return nil
}

func (c *Client) bearerGet(ctx context.Context, endpoint, accessToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.client.Do(req)
}
