// Package billing answers paid-membership lookups and records payment events.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Billing period status values.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

type Store struct {
	pg     Querier
	schema string
}

func NewStore(pg Querier, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "public"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) table(name string) string { return s.schema + "." + name }

// PaidSource returns the strongest paid source for userID in one round trip.
// Priority: ENTERPRISE grant > PARTNER grant > active provider subscription >
// paid billing period. KV grants live with redemption and are ignored here.
func (s *Store) PaidSource(ctx context.Context, userID string) (entitlements.Source, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return entitlements.SourceNone, fmt.Errorf("billing: invalid user id: %w", err)
	}
	if s.pg == nil {
		return entitlements.SourceNone, errors.New("billing: no database")
	}
	var raw string
	err = s.pg.QueryRow(ctx, `
SELECT src FROM (
  SELECT source AS src, CASE source WHEN 'ENTERPRISE' THEN 0 ELSE 1 END AS rank
    FROM `+s.table("subscriber_entitlements")+`
   WHERE user_id = $1 AND active AND source IN ('ENTERPRISE', 'PARTNER')
     AND starts_at <= NOW() AND (ends_at IS NULL OR ends_at > NOW())
  UNION ALL
  SELECT 'PAID', 2 FROM (
    SELECT status FROM `+s.table("subscriptions")+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
  ) latest WHERE latest.status = 'ACTIVE'
  UNION ALL
  SELECT 'PAID', 3 FROM `+s.table("member_billing")+`
   WHERE user_id = $1 AND status = 'paid' AND (paid_until IS NULL OR paid_until >= NOW())
) candidates
ORDER BY rank
LIMIT 1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return entitlements.SourceNone, nil
	}
	if err != nil {
		return entitlements.SourceNone, err
	}
	return entitlements.ParseSource(raw)
}

// MarkPaymentApproved settles the user's newest pending billing period with
// paymentID. Coverage runs from paidAt for the period's frequency. A payment
// that already settled a period settles nothing more, so redelivered
// notifications are no-ops. It returns the number of periods updated.
func (s *Store) MarkPaymentApproved(ctx context.Context, userID, paymentID string, paidAt time.Time) (int64, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return 0, fmt.Errorf("billing: invalid user id: %w", err)
	}
	tag, err := s.pg.Exec(ctx, `
UPDATE `+s.table("member_billing")+`
   SET status = 'paid', payment_id = $2, paid_at = $3,
       paid_until = $3 + `+periodCase("frequency")+`,
       updated_at = NOW()
 WHERE id = (
     SELECT id FROM `+s.table("member_billing")+`
      WHERE user_id = $1 AND status = 'pending'
      ORDER BY created_at DESC, id DESC
      LIMIT 1)
   AND NOT EXISTS (
     SELECT 1 FROM `+s.table("member_billing")+` WHERE payment_id = $2)`, id, paymentID, paidAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordNotification claims the (payment, kind) notification slot. It reports
// false when the notification was already recorded.
func (s *Store) RecordNotification(ctx context.Context, userID, paymentID, kind string) (bool, error) {
	tag, err := s.pg.Exec(ctx, `
INSERT INTO `+s.table("notif_emails")+` (user_id, payment_id, kind)
VALUES ($1, $2, $3)
ON CONFLICT (payment_id, kind) DO NOTHING`, userID, paymentID, kind)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DueBill is a paid billing period whose coverage ends on or before the check date.
type DueBill struct {
	ID        int64   `db:"id"`
	UserID    string  `db:"user_id"`
	Plan      string  `db:"plan"`
	Frequency string  `db:"frequency"`
	Amount    float64 `db:"amount"`
	PromoCode *string `db:"promo_code"`
	Channel   *string `db:"channel"`
}

// DueRenewals lists paid periods expiring by asOf that were never renewed.
// A period counts as renewed once any period points back at it, or once the
// user holds a later paid period.
func (s *Store) DueRenewals(ctx context.Context, asOf time.Time, limit int) ([]DueBill, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pg.Query(ctx, `
SELECT b.id, b.user_id::text AS user_id, b.plan, b.frequency, b.amount::float8 AS amount, b.promo_code, b.channel
  FROM `+s.table("member_billing")+` b
 WHERE b.status = 'paid' AND b.paid_until <= $1
   AND NOT EXISTS (
     SELECT 1 FROM `+s.table("member_billing")+` r
      WHERE r.previous_billing_id = b.id
         OR (r.user_id = b.user_id AND r.status = 'paid' AND r.paid_until > b.paid_until))
 ORDER BY b.paid_until
 LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[DueBill])
}

// InsertRenewal records the pending period created for a due bill.
func (s *Store) InsertRenewal(ctx context.Context, bill DueBill, preferenceID string) error {
	freq, err := NormalizeFrequency(bill.Frequency)
	if err != nil {
		return err
	}
	_, err = s.pg.Exec(ctx, `
INSERT INTO `+s.table("member_billing")+`
  (user_id, plan, frequency, status, provider, amount, promo_code, channel, description, preference_id, previous_billing_id)
VALUES ($1, $2, $3, 'pending', 'mercadopago', $4, $5, $6, 'scheduled renewal', $7, $8)`,
		bill.UserID, bill.Plan, freq, bill.Amount, bill.PromoCode, bill.Channel, preferenceID, bill.ID)
	return err
}

// Checkout describes a pending billing period opened by a new checkout.
type Checkout struct {
	UserID       string
	Plan         string
	Frequency    string
	Amount       float64
	Channel      string
	PreferenceID string
}

// InsertPending records a checkout awaiting payment confirmation.
func (s *Store) InsertPending(ctx context.Context, c Checkout) error {
	id, err := uuid.Parse(strings.TrimSpace(c.UserID))
	if err != nil {
		return fmt.Errorf("billing: invalid user id: %w", err)
	}
	freq, err := NormalizeFrequency(c.Frequency)
	if err != nil {
		return err
	}
	_, err = s.pg.Exec(ctx, `
INSERT INTO `+s.table("member_billing")+`
  (user_id, plan, frequency, status, provider, amount, channel, description, preference_id)
VALUES ($1, $2, $3, 'pending', 'mercadopago', $4, NULLIF($5, ''), 'checkout', $6)`,
		id, c.Plan, freq, c.Amount, c.Channel, c.PreferenceID)
	return err
}
