// Package redemption issues and redeems invitation codes that grant the
// temporary KV entitlement.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulFidika/paywallkit/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCode     = errors.New("invalid_code")
	ErrCodeAlreadyUsed = errors.New("code_already_used")
)

// DefaultGrantWindow is how long a redeemed code grants access.
const DefaultGrantWindow = 30 * 24 * time.Hour

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// GateStore holds the per-session KV gate flag.
type GateStore interface {
	Set(ctx context.Context, sessionID string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// Grant is an active KV entitlement.
type Grant struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Remaining is the time left on the grant relative to now.
func (g Grant) Remaining(now time.Time) time.Duration {
	if d := g.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Service struct {
	pg          Querier
	schema      string
	GrantWindow time.Duration
	log         logrus.FieldLogger
}

func NewService(pg Querier, schema string, log logrus.FieldLogger) *Service {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "public"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{pg: pg, schema: s, GrantWindow: DefaultGrantWindow, log: log}
}

func (s *Service) table(name string) string { return s.schema + "." + name }

// Redeem consumes code for userID and opens a KV grant. Claiming the code and
// inserting the grant happen in one statement, so a code is granted at most once.
func (s *Service) Redeem(ctx context.Context, userID, code, deviceID string) (Grant, error) {
	uid, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return Grant{}, fmt.Errorf("redemption: invalid user id: %w", err)
	}
	digest, err := Digest(code)
	if err != nil {
		metrics.ObserveRedemption("invalid")
		return Grant{}, ErrInvalidCode
	}
	window := s.GrantWindow
	if window <= 0 {
		window = DefaultGrantWindow
	}

	var (
		expires *time.Time
		exists  bool
	)
	err = s.pg.QueryRow(ctx, `
WITH claimed AS (
  UPDATE `+s.table("kv_codes")+`
     SET used_at = NOW(), used_by = $2, device_id = NULLIF($3, '')
   WHERE code_hash = $1 AND used_at IS NULL
  RETURNING code_hash
), granted AS (
  INSERT INTO `+s.table("subscriber_entitlements")+` (user_id, source, active, starts_at, ends_at)
  SELECT $2, 'KV', TRUE, NOW(), NOW() + make_interval(secs => $4) FROM claimed
  RETURNING ends_at
)
SELECT (SELECT ends_at FROM granted),
       EXISTS (SELECT 1 FROM `+s.table("kv_codes")+` WHERE code_hash = $1)`,
		digest, uid, strings.TrimSpace(deviceID), window.Seconds()).Scan(&expires, &exists)
	if err != nil {
		metrics.ObserveRedemption("error")
		return Grant{}, err
	}
	switch {
	case expires != nil:
		metrics.ObserveRedemption("granted")
		s.log.WithFields(logrus.Fields{"user_id": userID, "expires_at": *expires}).Info("kv code redeemed")
		return Grant{ExpiresAt: *expires}, nil
	case exists:
		metrics.ObserveRedemption("already_used")
		return Grant{}, ErrCodeAlreadyUsed
	default:
		metrics.ObserveRedemption("invalid")
		return Grant{}, ErrInvalidCode
	}
}

// IsActive returns the user's longest-running active KV grant, if any.
func (s *Service) IsActive(ctx context.Context, userID string) (Grant, bool, error) {
	uid, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return Grant{}, false, nil
	}
	var ends time.Time
	err = s.pg.QueryRow(ctx, `
SELECT ends_at FROM `+s.table("subscriber_entitlements")+`
 WHERE user_id = $1 AND source = 'KV' AND active
   AND starts_at <= NOW() AND ends_at > NOW()
 ORDER BY ends_at DESC
 LIMIT 1`, uid).Scan(&ends)
	if errors.Is(err, pgx.ErrNoRows) {
		return Grant{}, false, nil
	}
	if err != nil {
		return Grant{}, false, err
	}
	return Grant{ExpiresAt: ends}, true, nil
}

// IssueCodes creates n unused codes and returns them in clear text.
// The clear text is not recoverable afterwards.
func (s *Service) IssueCodes(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	codes := make([]string, 0, n)
	digests := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		c, d, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
		digests = append(digests, d)
	}
	if _, err := s.pg.Exec(ctx, `INSERT INTO `+s.table("kv_codes")+` (code_hash) SELECT unnest($1::bytea[])`, digests); err != nil {
		return nil, err
	}
	return codes, nil
}

// OpenGate sets the session flag for the lifetime of the grant, bounded by
// the store's own maximum.
func OpenGate(ctx context.Context, gates GateStore, sessionID string, g Grant, now time.Time) error {
	if gates == nil || sessionID == "" {
		return nil
	}
	ttl := g.Remaining(now)
	if ttl <= 0 {
		return nil
	}
	return gates.Set(ctx, sessionID, ttl)
}
