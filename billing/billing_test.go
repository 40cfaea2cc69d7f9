package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	val string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.val
	return nil
}

type fakeDB struct {
	row      fakeRow
	rows     *fakeRows
	tag      pgconn.CommandTag
	execErr  error
	sql      string
	execArgs []any
	args     []any
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }
func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql, f.args = sql, args
	if f.rows == nil {
		return nil, errors.New("no rows configured")
	}
	return f.rows, nil
}
func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.execArgs = sql, args
	return f.tag, f.execErr
}

// fakeRows serves fixed rows to pgx.CollectRows.
type fakeRows struct {
	cols   []string
	data   [][]any
	i      int
	closed bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}
func (r *fakeRows) Next() bool {
	if r.closed || r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		v := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			v.Set(reflect.Zero(v.Type()))
			continue
		}
		v.Set(reflect.ValueOf(row[i]))
	}
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return r.data[r.i-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

const uid = "0b7f5c8e-3d2a-4f6b-9c1d-2e3f4a5b6c7d"

func TestPaidSource(t *testing.T) {
	ctx := context.Background()

	src, err := NewStore(&fakeDB{row: fakeRow{val: "ENTERPRISE"}}, "").PaidSource(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, entitlements.SourceEnterprise, src)

	src, err = NewStore(&fakeDB{row: fakeRow{val: "PAID"}}, "").PaidSource(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, entitlements.SourcePaid, src)

	src, err = NewStore(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, "").PaidSource(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, entitlements.SourceNone, src)

	_, err = NewStore(&fakeDB{row: fakeRow{err: errors.New("timeout")}}, "").PaidSource(ctx, uid)
	require.Error(t, err)

	_, err = NewStore(&fakeDB{}, "").PaidSource(ctx, "nope")
	require.Error(t, err)
}

func TestRecordNotification(t *testing.T) {
	ctx := context.Background()

	first, err := NewStore(&fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}, "").RecordNotification(ctx, uid, "pay-1", "payment_confirmed")
	require.NoError(t, err)
	require.True(t, first)

	again, err := NewStore(&fakeDB{tag: pgconn.NewCommandTag("INSERT 0 0")}, "").RecordNotification(ctx, uid, "pay-1", "payment_confirmed")
	require.NoError(t, err)
	require.False(t, again)
}

func TestNormalizeFrequency(t *testing.T) {
	cases := map[string]string{
		"":            FrequencyMonthly,
		"Mensual":     FrequencyMonthly,
		"monthly":     FrequencyMonthly,
		"Trimestral":  FrequencyQuarterly,
		" SEMESTRAL ": FrequencySemiannual,
		"semiannual":  FrequencySemiannual,
		"Anual":       FrequencyAnnual,
		"annual":      FrequencyAnnual,
	}
	for in, want := range cases {
		got, err := NormalizeFrequency(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"weekly", "bimestral", "12"} {
		_, err := NormalizeFrequency(in)
		require.ErrorIs(t, err, ErrInvalidFrequency, in)
	}
}

func TestMarkPaymentApproved(t *testing.T) {
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	n, err := NewStore(db, "").MarkPaymentApproved(context.Background(), uid, "pay-9", paidAt)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, "pay-9", db.execArgs[1])
	require.Equal(t, paidAt, db.execArgs[2])

	// only the newest pending period, and never twice for one payment
	require.Contains(t, db.sql, "ORDER BY created_at DESC, id DESC")
	require.Contains(t, db.sql, "LIMIT 1")
	require.Contains(t, db.sql, "WHERE payment_id = $2")
}

func TestMarkPaymentApproved_CoveragePerFrequency(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	_, err := NewStore(db, "").MarkPaymentApproved(context.Background(), uid, "pay-1", time.Now())
	require.NoError(t, err)

	want := map[string]string{
		FrequencyMonthly:    "1 month",
		FrequencyQuarterly:  "3 months",
		FrequencySemiannual: "6 months",
		FrequencyAnnual:     "1 year",
	}
	for freq, interval := range want {
		require.Contains(t, db.sql, "WHEN '"+freq+"' THEN INTERVAL '"+interval+"'", freq)
	}
	// whatever a client sends is stored in a form the CASE matches
	for _, in := range []string{"Mensual", "Trimestral", "Semestral", "Anual", "anual"} {
		stored, err := NormalizeFrequency(in)
		require.NoError(t, err)
		require.Contains(t, db.sql, "WHEN '"+stored+"'", in)
	}
}

func TestInsertPending(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	err := NewStore(db, "billing").InsertPending(ctx, Checkout{
		UserID: uid, Plan: "Individual", Frequency: "Anual", Amount: 1990, Channel: "web", PreferenceID: "pref-7",
	})
	require.NoError(t, err)
	require.Contains(t, db.sql, "INSERT INTO billing.member_billing")
	require.Equal(t, FrequencyAnnual, db.execArgs[2])
	require.Equal(t, 1990.0, db.execArgs[3])
	require.Equal(t, "pref-7", db.execArgs[5])

	db = &fakeDB{}
	err = NewStore(db, "").InsertPending(ctx, Checkout{UserID: uid, Frequency: "weekly", Amount: 10})
	require.ErrorIs(t, err, ErrInvalidFrequency)
	require.Empty(t, db.sql)

	err = NewStore(db, "").InsertPending(ctx, Checkout{UserID: "nope", Amount: 10})
	require.Error(t, err)
}

func TestDueRenewals(t *testing.T) {
	promo := "VERANO"
	db := &fakeDB{rows: &fakeRows{
		cols: []string{"id", "user_id", "plan", "frequency", "amount", "promo_code", "channel"},
		data: [][]any{
			{int64(11), uid, "Individual", "anual", 1990.0, &promo, nil},
			{int64(12), uid, "Familiar", "mensual", 349.0, nil, nil},
		},
	}}
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bills, err := NewStore(db, "").DueRenewals(context.Background(), asOf, 0)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	require.Equal(t, DueBill{ID: 11, UserID: uid, Plan: "Individual", Frequency: "anual", Amount: 1990, PromoCode: &promo}, bills[0])
	require.Nil(t, bills[1].PromoCode)
	require.True(t, db.rows.closed)
	require.Equal(t, []any{asOf, 500}, db.args)

	// a renewal row of any status, or a later paid period, retires the bill
	require.Contains(t, db.sql, "WHERE r.previous_billing_id = b.id\n")
	require.NotContains(t, db.sql, "r.previous_billing_id = b.id AND r.status")
	require.Contains(t, db.sql, "r.status = 'paid' AND r.paid_until > b.paid_until")
}

func TestInsertRenewal(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	bill := DueBill{ID: 11, UserID: uid, Plan: "Individual", Frequency: "Semestral", Amount: 990}
	require.NoError(t, NewStore(db, "").InsertRenewal(ctx, bill, "pref-r"))
	require.Equal(t, FrequencySemiannual, db.execArgs[2])
	require.Equal(t, "pref-r", db.execArgs[6])
	require.Equal(t, int64(11), db.execArgs[7])
	require.True(t, strings.Contains(db.sql, "'pending'"))

	bill.Frequency = "weekly"
	require.ErrorIs(t, NewStore(&fakeDB{}, "").InsertRenewal(ctx, bill, "pref-r"), ErrInvalidFrequency)
}

type countingLookup struct {
	src   entitlements.Source
	err   error
	calls int
}

func (c *countingLookup) PaidSource(context.Context, string) (entitlements.Source, error) {
	c.calls++
	return c.src, c.err
}

type mapCache struct {
	m      map[string]entitlements.Source
	getErr error
}

func (m *mapCache) GetSource(_ context.Context, id string) (entitlements.Source, bool, error) {
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	s, ok := m.m[id]
	return s, ok, nil
}
func (m *mapCache) PutSource(_ context.Context, id string, s entitlements.Source, _ time.Duration) error {
	m.m[id] = s
	return nil
}
func (m *mapCache) DelSource(_ context.Context, id string) error {
	delete(m.m, id)
	return nil
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCachedLookup(t *testing.T) {
	ctx := context.Background()
	next := &countingLookup{src: entitlements.SourcePaid}
	cache := &mapCache{m: map[string]entitlements.Source{}}
	c := NewCachedLookup(next, cache, time.Minute, quiet())

	for i := 0; i < 3; i++ {
		src, err := c.PaidSource(ctx, uid)
		require.NoError(t, err)
		require.Equal(t, entitlements.SourcePaid, src)
	}
	require.Equal(t, 1, next.calls)

	require.NoError(t, c.Invalidate(ctx, uid))
	_, _ = c.PaidSource(ctx, uid)
	require.Equal(t, 2, next.calls)
}

func TestCachedLookup_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	next := &countingLookup{err: errors.New("down")}
	cache := &mapCache{m: map[string]entitlements.Source{}}
	c := NewCachedLookup(next, cache, time.Minute, quiet())

	_, err := c.PaidSource(ctx, uid)
	require.Error(t, err)
	require.Empty(t, cache.m)
}

func TestCachedLookup_CacheFailureFallsThrough(t *testing.T) {
	next := &countingLookup{src: entitlements.SourcePartner}
	c := NewCachedLookup(next, &mapCache{m: map[string]entitlements.Source{}, getErr: errors.New("redis down")}, 0, quiet())
	src, err := c.PaidSource(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, entitlements.SourcePartner, src)
}
