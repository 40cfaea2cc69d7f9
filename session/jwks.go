package session

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWKSVerifier validates asymmetric tokens against a remote, cached key set.
type JWKSVerifier struct {
	cfg   Config
	cache *jwk.Cache
}

// NewJWKSVerifier registers cfg.JWKSURL in a refreshing cache bound to ctx.
// Keys are fetched lazily on the first Verify.
func NewJWKSVerifier(ctx context.Context, cfg Config) (*JWKSVerifier, error) {
	refresh := cfg.JWKSRefresh
	if refresh <= 0 {
		refresh = 15 * time.Minute
	}
	c := jwk.NewCache(ctx)
	if err := c.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(refresh)); err != nil {
		return nil, fmt.Errorf("session: register jwks %s: %w", cfg.JWKSURL, err)
	}
	return &JWKSVerifier{cfg: cfg, cache: c}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, raw string) (*entitlements.Session, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	set, err := v.cache.Get(ctx, v.cfg.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("session: jwks fetch: %w", err)
	}
	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.cfg.skew()),
		jwt.WithContext(ctx),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	tok, err := jwt.ParseString(raw, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return fromClaims(func(name string) string {
		switch name {
		case "sub":
			return tok.Subject()
		case "jti":
			return tok.JwtID()
		}
		if raw, ok := tok.Get(name); ok {
			if s, ok := raw.(string); ok {
				return s
			}
		}
		return ""
	})
}
