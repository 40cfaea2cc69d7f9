// Package session verifies bearer tokens issued by the auth backend and turns
// them into entitlements.Session values.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulFidika/paywallkit/entitlements"
)

var (
	ErrMissingToken = errors.New("session: missing bearer token")
	ErrInvalidToken = errors.New("session: invalid token")
)

// Verifier validates a raw token and returns the session it carries.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*entitlements.Session, error)
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *entitlements.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by WithSession.
func FromContext(ctx context.Context) (*entitlements.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*entitlements.Session)
	return s, ok && s != nil && s.UserID != ""
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// fromClaims builds a session from string claims. The client-session id falls
// back to jti and then to the user id so session-scoped state always has a key.
func fromClaims(get func(string) string) (*entitlements.Session, error) {
	sub := get("sub")
	if sub == "" {
		return nil, ErrInvalidToken
	}
	id := get("session_id")
	if id == "" {
		id = get("jti")
	}
	if id == "" {
		id = sub
	}
	return &entitlements.Session{UserID: sub, Email: get("email"), ID: id}, nil
}

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, raw string) (*entitlements.Session, error) {
	err := ErrInvalidToken
	for _, v := range c {
		if v == nil {
			continue
		}
		s, verr := v.Verify(ctx, raw)
		if verr == nil {
			return s, nil
		}
		err = verr
	}
	return nil, err
}

// NewVerifier builds the verifier described by cfg.
func NewVerifier(ctx context.Context, cfg Config) (Verifier, error) {
	var chain Chain
	if cfg.JWTSecret != "" {
		chain = append(chain, NewHMACVerifier(cfg))
	}
	if cfg.JWKSURL != "" {
		v, err := NewJWKSVerifier(ctx, cfg)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if len(chain) == 0 {
		return nil, errors.New("session: no jwt secret or jwks url configured")
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}
