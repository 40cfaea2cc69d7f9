package session

import "time"

// Config describes which session tokens are accepted.
// Exactly one of JWTSecret (Supabase HS256) or JWKSURL (RS256) is normally set;
// when both are, the shared secret is tried first.
type Config struct {
	Issuer    string
	Audience  string // expected "aud"; empty skips the check
	JWTSecret string
	JWKSURL   string
	Skew      time.Duration
	// JWKSRefresh bounds how often the key set is re-fetched.
	JWKSRefresh time.Duration
}

func (c Config) skew() time.Duration {
	if c.Skew <= 0 {
		return 30 * time.Second
	}
	return c.Skew
}
