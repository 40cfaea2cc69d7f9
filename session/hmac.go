package session

import (
	"context"
	"fmt"

	"github.com/PaulFidika/paywallkit/entitlements"
	jwt "github.com/golang-jwt/jwt/v5"
)

// HMACVerifier checks Supabase-style HS256 access tokens locally with the
// project's JWT secret.
type HMACVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

func NewHMACVerifier(cfg Config) *HMACVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(cfg.skew()),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &HMACVerifier{secret: []byte(cfg.JWTSecret), opts: opts}
}

func (v *HMACVerifier) Verify(_ context.Context, raw string) (*entitlements.Session, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return fromClaims(func(name string) string {
		s, _ := claims[name].(string)
		return s
	})
}
