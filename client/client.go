// Package client talks to the shelf-auth HTTP API on behalf of a session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the API client
type Config struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// Client calls the auth, registration and profile endpoints
type Client struct {
	baseURL string
	client  *http.Client
}

// Credentials for password login
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is a self-service sign up
type Registration struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio,omitempty"`
	FavoriteTopics []string `json:"favoriteTopics,omitempty"`
	AccountType    string   `json:"accountType,omitempty"`
}

// ProfileUpdate is the editable part of a profile. A nil FavoriteTopics
// keeps the stored topics.
type ProfileUpdate struct {
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio"`
	FavoriteTopics []string `json:"favoriteTopics,omitempty"`
}

// Token is an issued access token
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Redirect    string    `json:"redirect,omitempty"`
}

// Profile is the server view of the signed in user
type Profile struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio,omitempty"`
	FavoriteTopics []string `json:"favoriteTopics"`
}

// APIError is a non 2xx response
type APIError struct {
	Status   int    `json:"-"`
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth api: status %d", e.Status)
	}
	return fmt.Sprintf("auth api: status %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports a 401 from the API
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// New builds a client for the API rooted at BaseURL
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("auth api base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: baseURL, client: hc}, nil
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*Token, error) {
	out := new(Token)
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", creds, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (*Token, error) {
	out := new(Token)
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", reg, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me fetches the profile of the token owner
func (c *Client) Me(ctx context.Context, token string) (*Profile, error) {
	out := new(Profile)
	if err := c.do(ctx, http.MethodGet, "/api/profiles/me", token, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*Profile, error) {
	out := new(Profile)
	if err := c.do(ctx, http.MethodPut, "/api/profiles", token, update, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
