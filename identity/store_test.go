package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *[]string:
			*p = r.vals[i].([]string)
		}
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	lastSQL string
	args    []any
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.args = sql, args
	return f.row
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.args = sql, args
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

const uid = "0b7f5c8e-3d2a-4f6b-9c1d-2e3f4a5b6c7d"

func TestGetProfile(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{"tester-KV", []string{"KV_BETA"}}}}
	s := NewStore(db, "app")

	p, err := s.GetProfile(context.Background(), uid)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil || p.MembershipType != "tester-KV" || len(p.Entitlements) != 1 || p.UserID != uid {
		t.Fatalf("unexpected profile %+v", p)
	}
	if !strings.Contains(db.lastSQL, "app.profiles") {
		t.Fatalf("schema not applied: %s", db.lastSQL)
	}
}

func TestGetProfile_Missing(t *testing.T) {
	s := NewStore(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, "")
	p, err := s.GetProfile(context.Background(), uid)
	if err != nil || p != nil {
		t.Fatalf("missing row should be nil, nil; got %+v, %v", p, err)
	}
}

func TestGetProfile_InvalidIDSkipsQuery(t *testing.T) {
	db := &fakeDB{}
	p, err := NewStore(db, "").GetProfile(context.Background(), "not-a-uuid")
	if err != nil || p != nil || db.lastSQL != "" {
		t.Fatalf("invalid id should not query; got %+v, %v, %q", p, err, db.lastSQL)
	}
}

func TestGetProfile_Error(t *testing.T) {
	boom := errors.New("conn reset")
	_, err := NewStore(&fakeDB{row: fakeRow{err: boom}}, "").GetProfile(context.Background(), uid)
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
}

func TestGetContact(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{"ana@example.test", "Ana"}}}
	c, err := NewStore(db, "").GetContact(context.Background(), uid)
	if err != nil || c == nil || c.Email != "ana@example.test" || c.Name != "Ana" {
		t.Fatalf("got %+v, %v", c, err)
	}
}
