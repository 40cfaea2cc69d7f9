package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the stores use.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads membership profiles from the profiles schema.
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

func (s *Store) profilesTable() string { return s.schema + ".profiles" }

// GetProfile returns the membership profile for userID, or nil when there is none.
func (s *Store) GetProfile(ctx context.Context, userID string) (*entitlements.Profile, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if s.pg == nil || err != nil || id == uuid.Nil {
		return nil, nil
	}
	var (
		membership string
		flags      []string
	)
	err = s.pg.QueryRow(ctx,
		`SELECT COALESCE(membership_type, ''), COALESCE(entitlements, '{}'::text[]) FROM `+s.profilesTable()+` WHERE user_id=$1 LIMIT 1`,
		id,
	).Scan(&membership, &flags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entitlements.Profile{UserID: id.String(), MembershipType: membership, Entitlements: flags}, nil
}

// Contact is what notifications need to address a user.
type Contact struct {
	Email string
	Name  string
}

// GetContact returns the email and display name for userID.
func (s *Store) GetContact(ctx context.Context, userID string) (*Contact, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if s.pg == nil || err != nil || id == uuid.Nil {
		return nil, nil
	}
	var c Contact
	err = s.pg.QueryRow(ctx,
		`SELECT COALESCE(email, ''), COALESCE(full_name, '') FROM `+s.profilesTable()+` WHERE user_id=$1 LIMIT 1`,
		id,
	).Scan(&c.Email, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
