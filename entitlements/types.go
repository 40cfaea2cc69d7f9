package entitlements

import (
	"fmt"
	"strings"
)

// Source classifies where a user's access comes from.
type Source uint8

const (
	SourceNone Source = iota
	SourceKV          // temporary tester / invite-code grant
	SourcePaid
	SourcePartner
	SourceEnterprise
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "NONE"
	case SourceKV:
		return "KV"
	case SourcePaid:
		return "PAID"
	case SourcePartner:
		return "PARTNER"
	case SourceEnterprise:
		return "ENTERPRISE"
	default:
		return fmt.Sprintf("Source(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the declared sources.
func (s Source) Valid() bool { return s <= SourceEnterprise }

// IsPaid reports whether s is real paid access (blocks a second purchase).
func (s Source) IsPaid() bool {
	switch s {
	case SourcePaid, SourcePartner, SourceEnterprise:
		return true
	default:
		return false
	}
}

// ParseSource parses the canonical upper-case name (case-insensitive).
func ParseSource(v string) (Source, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NONE", "":
		return SourceNone, nil
	case "KV":
		return SourceKV, nil
	case "PAID":
		return SourcePaid, nil
	case "PARTNER":
		return SourcePartner, nil
	case "ENTERPRISE":
		return SourceEnterprise, nil
	}
	return SourceNone, fmt.Errorf("entitlements: unknown source %q", v)
}

func (s Source) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("entitlements: invalid source %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(b []byte) error {
	v, err := ParseSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Entitlement is the access classification computed for one evaluation.
// It is never persisted; build it with New so PaywallEnabled stays consistent.
type Entitlement struct {
	Source         Source `json:"source"`
	PaywallEnabled bool   `json:"paywall_enabled"`
}

// New returns the entitlement for source. The paywall is on only for SourceNone.
func New(source Source) Entitlement {
	if !source.Valid() {
		source = SourceNone
	}
	return Entitlement{Source: source, PaywallEnabled: source == SourceNone}
}

// RequiresPayment is the single predicate behind both the checkout and the
// feature gates. Inconsistent hand-built values fail closed.
func (e Entitlement) RequiresPayment() bool {
	return e.PaywallEnabled || e.Source == SourceNone || !e.Source.Valid()
}

// Membership codes and entitlement flags that signal a temporary grant.
const (
	MembershipTesterKV = "tester-KV"
	// legacy code written by the first invite flow
	MembershipTesterKVLegacy = "VITAKV"
	FlagKVBeta               = "KV_BETA"
)

// Profile is the subset of a user profile the resolver reads.
type Profile struct {
	UserID         string   `json:"user_id"`
	MembershipType string   `json:"membership_type"`
	Entitlements   []string `json:"entitlements,omitempty"`
}

// IsTester reports whether the profile carries a tester signal. A nil profile has none.
func (p *Profile) IsTester() bool {
	if p == nil {
		return false
	}
	switch strings.TrimSpace(p.MembershipType) {
	case MembershipTesterKV, MembershipTesterKVLegacy:
		return true
	}
	for _, f := range p.Entitlements {
		if f == FlagKVBeta {
			return true
		}
	}
	return false
}

// Session is the authenticated identity for a request.
type Session struct {
	UserID string
	Email  string
	// ID scopes client-session state such as the KV gate flag.
	ID string
}
