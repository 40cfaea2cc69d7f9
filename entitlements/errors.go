package entitlements

import (
	"errors"
	"fmt"
)

// Taxonomy codes surfaced to clients.
const (
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodePaywall              = "PAYWALL"
	CodeAlreadyPaid          = "ALREADY_PAID"
	CodeUpstreamLookupFailed = "UPSTREAM_LOOKUP_FAILED"
)

var (
	ErrUnauthenticated = errors.New("entitlements: no authenticated session")
	ErrPaywall         = errors.New("entitlements: subscription required")
	// ErrCheckoutNotRequired means the caller already has access and should be
	// sent to their plan page instead of the checkout.
	ErrCheckoutNotRequired = errors.New("entitlements: checkout not required")
	// ErrUpstreamLookupFailed wraps profile/billing failures for logs only.
	ErrUpstreamLookupFailed = errors.New("entitlements: upstream lookup failed")
)

// AlreadyPaidError rejects a new subscription for a user that already holds paid access.
type AlreadyPaidError struct {
	Source Source
}

func (e *AlreadyPaidError) Error() string {
	return fmt.Sprintf("entitlements: already paid (source %s)", e.Source)
}

// Code maps err to its taxonomy code, or "" if it is not a gate error.
func Code(err error) string {
	var ap *AlreadyPaidError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrPaywall):
		return CodePaywall
	case errors.As(err, &ap):
		return CodeAlreadyPaid
	case errors.Is(err, ErrUpstreamLookupFailed):
		return CodeUpstreamLookupFailed
	}
	return ""
}
