// Package auth gates terminal clients before a request reaches the gateway.
// A client trades its id and secret for a bearer token; the token is a
// signed JWT naming a server-side session, so it can be revoked early.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSessionExpired = errors.New("session expired or revoked")
)

type Authenticator interface {
	GenerateToken(clientID, sessionID string, ttl time.Duration) (string, error)
	ValidateToken(token string) (*Claims, error)
}

// Sessions is the server-side record of live sessions.
type Sessions interface {
	Create(ctx context.Context, clientID string, ttl time.Duration) (string, error)
	Lookup(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Session is what the token endpoint returns.
type Session struct {
	Token     string
	ClientID  string
	ExpiresIn time.Duration
}

type Manager struct {
	creds    *Credentials
	sessions Sessions
	tokens   Authenticator
	ttl      time.Duration
}

func NewManager(creds *Credentials, sessions Sessions, tokens Authenticator, ttl time.Duration) *Manager {
	return &Manager{creds: creds, sessions: sessions, tokens: tokens, ttl: ttl}
}

// Login checks the client secret and opens a session.
func (m *Manager) Login(ctx context.Context, clientID, secret string) (*Session, error) {
	if err := m.creds.Verify(clientID, secret); err != nil {
		return nil, err
	}
	sid, err := m.sessions.Create(ctx, clientID, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, err := m.tokens.GenerateToken(clientID, sid, m.ttl)
	if err != nil {
		_ = m.sessions.Delete(ctx, sid)
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, ClientID: clientID, ExpiresIn: m.ttl}, nil
}

// Validate returns the client id behind a live token.
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	clientID, err := m.sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		return "", err
	}
	if clientID != claims.Subject {
		return "", fmt.Errorf("%w: session does not belong to token subject", ErrUnauthorized)
	}
	return clientID, nil
}

// Logout revokes the session behind token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return m.sessions.Delete(ctx, claims.SessionID)
}
