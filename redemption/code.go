package redemption

import (
	"crypto/rand"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// CodePrefix starts every invitation code.
const CodePrefix = "VITAKV-"

const codeBytes = 10

var errMalformedCode = errors.New("redemption: malformed code")

// GenerateCode returns a fresh invitation code and the digest to store for it.
// Only the digest is persisted.
func GenerateCode() (code string, digest []byte, err error) {
	raw := make([]byte, codeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	sum := blake2b.Sum256(raw)
	return CodePrefix + base58.Encode(raw), sum[:], nil
}

// Digest normalizes a user-typed code and returns its stored digest.
// The prefix is matched case-insensitively; the body is case-sensitive base58.
func Digest(code string) ([]byte, error) {
	c := strings.TrimSpace(code)
	if len(c) <= len(CodePrefix) || !strings.EqualFold(c[:len(CodePrefix)], CodePrefix) {
		return nil, errMalformedCode
	}
	raw, err := base58.Decode(c[len(CodePrefix):])
	if err != nil || len(raw) != codeBytes {
		return nil, errMalformedCode
	}
	sum := blake2b.Sum256(raw)
	return sum[:], nil
}
