// Package session resolves the visitor's session against the auth backend.
//
// Authentication itself lives in the backend; this package only asks it
// "who is this cookie" and reports the answer. An ordinary "no session"
// answer is (nil, nil) — only transport failure produces an error.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is the identity the auth backend attaches to a session.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Status  string `json:"status"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Session is the resolved session for a forwarded credential.
type Session struct {
	User *User `json:"user"`
	Meta struct {
		ID        string `json:"id"`
		UserID    string `json:"userId"`
		ExpiresAt string `json:"expiresAt"`
	} `json:"session"`
}

// Resolver looks up the session for a raw Cookie header.
type Resolver interface {
	Resolve(ctx context.Context, cookieHeader string) (*Session, error)
}

// Client resolves sessions over HTTP against the auth backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a resolver for the backend at baseURL (no trailing
// slash).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Resolve forwards the visitor's cookies to the backend session endpoint.
// No cookie means no session; the backend answering anything but a
// session (empty body, null, non-2xx) also means no session.
func (c *Client) Resolve(ctx context.Context, cookieHeader string) (*Session, error) {
	if cookieHeader == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/get-session", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, nil
	}

	var s Session
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		return nil, nil
	}
	if s.User == nil || s.User.ID == "" {
		return nil, nil
	}
	return &s, nil
}

type ctxKey int

const sessionKey ctxKey = 1

// NewContext attaches a resolved session to the request context.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session placed by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}
