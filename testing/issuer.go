// Package testing provides a mock session issuer for tests of paywallkit and
// of applications that mount its middleware. It serves a JWKS document and
// signs RS256 tokens that validate against it, and it can also mint the
// HS256 tokens a Supabase project issues.
//
// Example usage:
//
//	issuer := testing.NewTestIssuer()
//	defer issuer.Close()
//
//	cfg.Session.JWKSURL = issuer.JWKSURL()
//	token := issuer.CreateToken("user-123", "sess-1")
package testing

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const testKeyID = "paywall-test-1"

// TestIssuer is an httptest server exposing /.well-known/jwks.json.
type TestIssuer struct {
	server   *httptest.Server
	key      *rsa.PrivateKey
	audience string
}

func NewTestIssuer() *TestIssuer {
	return NewTestIssuerWithAudience("authenticated")
}

// NewTestIssuerWithAudience creates an issuer whose tokens carry audience.
func NewTestIssuerWithAudience(audience string) *TestIssuer {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("failed to generate RSA key: " + err.Error())
	}
	ti := &TestIssuer{key: key, audience: audience}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", ti.handleJWKS)
	ti.server = httptest.NewServer(mux)
	return ti
}

func (ti *TestIssuer) URL() string      { return ti.server.URL }
func (ti *TestIssuer) JWKSURL() string  { return ti.server.URL + "/.well-known/jwks.json" }
func (ti *TestIssuer) Audience() string { return ti.audience }

func (ti *TestIssuer) Close() {
	if ti.server != nil {
		ti.server.Close()
	}
}

func (ti *TestIssuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	k, err := jwk.FromRaw(&ti.key.PublicKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = k.Set(jwk.KeyIDKey, testKeyID)
	_ = k.Set(jwk.AlgorithmKey, jwa.RS256)
	_ = k.Set(jwk.KeyUsageKey, "sig")
	set := jwk.NewSet()
	_ = set.AddKey(k)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

func (ti *TestIssuer) baseClaims(userID, sessionID string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":        userID,
		"session_id": sessionID,
		"email":      userID + "@example.test",
		"iss":        ti.URL(),
		"aud":        ti.audience,
		"role":       "authenticated",
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	}
}

// CreateToken signs an RS256 token for userID with the given session id.
func (ti *TestIssuer) CreateToken(userID, sessionID string) string {
	return ti.CreateTokenWithClaims(userID, sessionID, nil)
}

// CreateTokenWithClaims merges extra into the standard claims before signing.
func (ti *TestIssuer) CreateTokenWithClaims(userID, sessionID string, extra map[string]any) string {
	claims := ti.baseClaims(userID, sessionID)
	for k, v := range extra {
		claims[k] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	s, err := tok.SignedString(ti.key)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return s
}

// CreateExpiredToken returns a token that expired an hour ago.
func (ti *TestIssuer) CreateExpiredToken(userID, sessionID string) string {
	return ti.CreateTokenWithClaims(userID, sessionID, map[string]any{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
}

// SignHMAC mints a Supabase-style HS256 access token.
func SignHMAC(secret, userID, sessionID string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"aud":  "authenticated",
		"role": "authenticated",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if sessionID != "" {
		claims["session_id"] = sessionID
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return s
}
