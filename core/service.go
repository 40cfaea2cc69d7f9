// Package core ties sessions, profiles, billing and KV grants together into
// the operations the HTTP layer exposes.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/PaulFidika/paywallkit/billing"
	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/PaulFidika/paywallkit/metrics"
	"github.com/PaulFidika/paywallkit/payments/mercadopago"
	"github.com/PaulFidika/paywallkit/redemption"
	"github.com/sirupsen/logrus"
)

var ErrNotConfigured = errors.New("not_configured")

type ProfileLoader interface {
	GetProfile(ctx context.Context, userID string) (*entitlements.Profile, error)
}

type Redeemer interface {
	Redeem(ctx context.Context, userID, code, deviceID string) (redemption.Grant, error)
	IsActive(ctx context.Context, userID string) (redemption.Grant, bool, error)
}

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (mercadopago.Preference, error)
}

type PendingRecorder interface {
	InsertPending(ctx context.Context, c billing.Checkout) error
}

type Deps struct {
	Profiles    ProfileLoader
	Billing     entitlements.PaidSourceLookup
	Gates       redemption.GateStore
	Redeemer    Redeemer
	Preferences PreferenceCreator
	Pending     PendingRecorder
	Decisions   DecisionLogger
	Log         logrus.FieldLogger
}

type Service struct {
	profiles    ProfileLoader
	gates       redemption.GateStore
	resolver    *entitlements.Resolver
	redeemer    Redeemer
	preferences PreferenceCreator
	pending     PendingRecorder
	decisions   DecisionLogger
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	dec := d.Decisions
	if dec == nil {
		dec = LogrusDecisionLogger{Log: log}
	}
	return &Service{
		profiles:    d.Profiles,
		gates:       d.Gates,
		resolver:    entitlements.NewResolver(d.Billing, log),
		redeemer:    d.Redeemer,
		preferences: d.Preferences,
		pending:     d.Pending,
		decisions:   dec,
		log:         log,
		now:         time.Now,
	}
}

// Entitlements resolves the caller's entitlement. The profile is loaded at
// most once per call and the KV gate flag is read for the session. Neither
// lookup can fail the call: missing data means no temporary grant.
func (s *Service) Entitlements(ctx context.Context, sess *entitlements.Session) entitlements.Entitlement {
	if sess == nil || sess.UserID == "" {
		return s.resolver.Resolve(ctx, nil, nil, false)
	}
	return s.resolver.Resolve(ctx, sess, s.profile(ctx, sess.UserID), s.kvGate(ctx, sess.ID))
}

func (s *Service) profile(ctx context.Context, userID string) *entitlements.Profile {
	if s.profiles == nil {
		return nil
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		metrics.ObserveLookupFailure("profile")
		s.log.WithField("user_id", userID).WithError(err).Warn("profile lookup failed")
		return nil
	}
	return p
}

func (s *Service) kvGate(ctx context.Context, sessionID string) bool {
	if s.gates == nil || sessionID == "" {
		return false
	}
	open, err := s.gates.Get(ctx, sessionID)
	if err != nil {
		metrics.ObserveLookupFailure("kv_gate")
		s.log.WithError(err).Warn("kv gate lookup failed")
		return false
	}
	return open
}

// RedeemCode consumes an invitation code and opens the KV gate for the
// current session.
func (s *Service) RedeemCode(ctx context.Context, sess *entitlements.Session, code, deviceID string) (redemption.Grant, error) {
	if sess == nil || sess.UserID == "" {
		return redemption.Grant{}, entitlements.ErrUnauthenticated
	}
	if s.redeemer == nil {
		return redemption.Grant{}, ErrNotConfigured
	}
	g, err := s.redeemer.Redeem(ctx, sess.UserID, code, deviceID)
	if err != nil {
		return redemption.Grant{}, err
	}
	if err := redemption.OpenGate(ctx, s.gates, sess.ID, g, s.now()); err != nil {
		// the grant is persisted; LinkGrant can reopen the gate later
		s.log.WithField("user_id", sess.UserID).WithError(err).Warn("kv gate set failed")
	}
	return g, nil
}

// LinkGrant reopens the KV gate on a new session when the user still holds
// an active grant. It reports whether a grant was found.
func (s *Service) LinkGrant(ctx context.Context, sess *entitlements.Session) (redemption.Grant, bool, error) {
	if sess == nil || sess.UserID == "" {
		return redemption.Grant{}, false, entitlements.ErrUnauthenticated
	}
	if s.redeemer == nil {
		return redemption.Grant{}, false, ErrNotConfigured
	}
	g, ok, err := s.redeemer.IsActive(ctx, sess.UserID)
	if err != nil || !ok {
		return redemption.Grant{}, false, err
	}
	if err := redemption.OpenGate(ctx, s.gates, sess.ID, g, s.now()); err != nil {
		return g, true, err
	}
	return g, true, nil
}

// EndSession clears the session-scoped KV gate.
func (s *Service) EndSession(ctx context.Context, sess *entitlements.Session) error {
	if sess == nil || s.gates == nil || sess.ID == "" {
		return nil
	}
	return s.gates.Clear(ctx, sess.ID)
}

// CheckoutRequest is a new subscription purchase.
type CheckoutRequest struct {
	Plan      string
	Frequency string
	Amount    float64
	Origin    string
	Channel   string
}

// StartCheckout refuses callers who already hold a paid membership, then
// opens a payment preference and records the pending period. An unknown
// frequency fails with billing.ErrInvalidFrequency.
func (s *Service) StartCheckout(ctx context.Context, sess *entitlements.Session, req CheckoutRequest) (mercadopago.Preference, error) {
	if sess == nil || sess.UserID == "" {
		return mercadopago.Preference{}, entitlements.ErrUnauthenticated
	}
	freq, err := billing.NormalizeFrequency(req.Frequency)
	if err != nil {
		return mercadopago.Preference{}, err
	}
	ent := s.Entitlements(ctx, sess)
	err = entitlements.GuardDuplicateSubscription(ent)
	s.RecordDecision(ctx, Decision{Gate: GateSubscription, UserID: sess.UserID, Source: ent.Source, Allowed: err == nil})
	if err != nil {
		return mercadopago.Preference{}, err
	}
	if s.preferences == nil {
		return mercadopago.Preference{}, ErrNotConfigured
	}
	pref, err := s.preferences.CreatePreference(ctx, mercadopago.PreferenceRequest{
		UserID:    sess.UserID,
		Plan:      req.Plan,
		Frequency: freq,
		Amount:    req.Amount,
		Origin:    req.Origin,
	})
	if err != nil {
		return mercadopago.Preference{}, err
	}
	if s.pending != nil {
		err := s.pending.InsertPending(ctx, billing.Checkout{
			UserID:       sess.UserID,
			Plan:         req.Plan,
			Frequency:    freq,
			Amount:       req.Amount,
			Channel:      req.Channel,
			PreferenceID: pref.ID,
		})
		if err != nil {
			return mercadopago.Preference{}, err
		}
	}
	return pref, nil
}
