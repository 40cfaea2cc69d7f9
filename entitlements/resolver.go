package entitlements

import (
	"context"
	"fmt"

	"github.com/PaulFidika/paywallkit/metrics"
	"github.com/sirupsen/logrus"
)

// PaidSourceLookup answers which paid membership, if any, a user holds.
// Implementations may fail; the resolver fails closed.
type PaidSourceLookup interface {
	PaidSource(ctx context.Context, userID string) (Source, error)
}

// Resolver computes entitlements. It keeps no state between calls.
type Resolver struct {
	billing PaidSourceLookup
	log     logrus.FieldLogger
}

func NewResolver(billing PaidSourceLookup, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{billing: billing, log: log}
}

// Resolve classifies the caller. A temporary grant (kvGate or a tester profile)
// wins without consulting billing; otherwise billing is asked exactly once.
// Lookup failures never reach the caller: they degrade to SourceNone.
func (r *Resolver) Resolve(ctx context.Context, sess *Session, profile *Profile, kvGate bool) Entitlement {
	if kvGate || profile.IsTester() {
		return r.done(New(SourceKV))
	}
	if sess == nil || sess.UserID == "" || r == nil || r.billing == nil {
		return r.done(New(SourceNone))
	}

	src, err := r.billing.PaidSource(ctx, sess.UserID)
	if err != nil {
		metrics.ObserveLookupFailure("billing")
		r.log.WithFields(logrus.Fields{
			"user_id": sess.UserID,
			"lookup":  "billing",
		}).WithError(fmt.Errorf("%w: %v", ErrUpstreamLookupFailed, err)).Warn("paid source lookup failed; requiring payment")
		return r.done(New(SourceNone))
	}
	if !src.IsPaid() {
		// billing never grants KV; anything else it reports is treated as no access
		src = SourceNone
	}
	return r.done(New(src))
}

func (r *Resolver) done(e Entitlement) Entitlement {
	metrics.ObserveResolution(e.Source.String())
	return e
}
