// Package auth resolves platform tokens to user ids.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/genomesearch/internal/cache"
)

var (
	// ErrInvalidToken is returned when the auth service rejects a token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnavailable is returned when the auth service cannot be reached.
	ErrUnavailable = errors.New("auth service unavailable")
)

// Client resolves tokens against the auth service and caches the results.
// URLs containing "/api/V2/" use the token endpoint (GET with Authorization);
// other URLs use the legacy Sessions/Login form endpoint.
type Client struct {
	url   string
	http  *http.Client
	cache *cache.LRU[string, string]
}

// NewClient creates an auth client. cacheSize and ttl bound the token cache.
func NewClient(authURL string, httpClient *http.Client, cacheSize int, ttl time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		url:   authURL,
		http:  httpClient,
		cache: cache.New[string, string](cacheSize, ttl),
	}
}

// GetUser returns the user id owning token.
func (c *Client) GetUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if user, ok := c.cache.Get(token); ok {
		return user, nil
	}
	var (
		user string
		err  error
	)
	if strings.Contains(c.url, "/api/V2/") {
		user, err = c.tokenEndpoint(ctx, token)
	} else {
		user, err = c.legacyLogin(ctx, token)
	}
	if err != nil {
		return "", err
	}
	c.cache.Set(token, user)
	return user, nil
}

func (c *Client) tokenEndpoint(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", token)
	var out struct {
		User string `json:"user"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.User, nil
}

func (c *Client) legacyLogin(ctx context.Context, token string) (string, error) {
	form := url.Values{"token": {token}, "fields": {"user_id"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrInvalidToken
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrInvalidToken, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
