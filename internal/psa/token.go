package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// tokenExpiryBuffer is subtracted from the token's expiry when
	// checking validity, so a token is never sent moments before it
	// expires mid-request.
	tokenExpiryBuffer = 60 * time.Second

	// defaultTokenLifetime applies when the token response omits
	// expires_in, in seconds.
	defaultTokenLifetime = 3600
)

// tokenState is the cached bearer token for one client instance. It
// starts empty, is replaced on each successful exchange, and is never
// persisted or shared between clients.
type tokenState struct {
	token  string
	expiry time.Time
}

// isValid reports whether the cached token can still be used: it must
// exist, and now must be strictly before expiry minus the safety
// buffer.
func (s tokenState) isValid(now time.Time) bool {
	return s.token != "" && now.Before(s.expiry.Add(-tokenExpiryBuffer))
}

// tokenResponse is the wire shape of a successful token exchange
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// authenticate returns a usable bearer token, performing the OAuth2
// client-credentials exchange when the cached one is missing or about
// to expire.
//
// No lock is held across the exchange: two callers racing on an
// invalid token may both hit the token endpoint. The remote endpoint
// tolerates repeated exchanges, and the cache keeps whichever response
// lands last. The mutex protects only the cache fields themselves.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	state := c.token
	c.mu.Unlock()

	if state.isValid(c.now()) {
		return state.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	tokenURL := c.cfg.BaseURL + "/auth/token"
	if c.cfg.Tenant != "" {
		tokenURL += "?tenant=" + url.QueryEscape(c.cfg.Tenant)
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: "token response missing access_token"}
	}

	lifetime := tr.ExpiresIn
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}

	state = tokenState{
		token:  tr.AccessToken,
		expiry: c.now().Add(time.Duration(lifetime) * time.Second),
	}

	c.mu.Lock()
	c.token = state
	c.mu.Unlock()

	c.log.WithField("expires_in", lifetime).Info("bearer token refreshed")
	return state.token, nil
}

// ClearToken drops the cached token and expiry, forcing a full
// re-authentication on the next call. Used after credential rotation
// or an explicit reconnect.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = tokenState{}
	c.mu.Unlock()
}
