package entitlements

// GuardCheckoutAccess lets the caller into the checkout flow only while they
// still need to pay. Otherwise it returns ErrCheckoutNotRequired and the caller
// should be redirected to their existing plan.
func GuardCheckoutAccess(e Entitlement) error {
	if e.RequiresPayment() {
		return nil
	}
	return ErrCheckoutNotRequired
}

// GuardFeatureAccess is the inverse of GuardCheckoutAccess for paid-only features.
func GuardFeatureAccess(e Entitlement) error {
	if e.RequiresPayment() {
		return ErrPaywall
	}
	return nil
}

// GuardDuplicateSubscription must run before a new provider subscription is
// created. KV grants do not block: a tester may still choose to pay.
func GuardDuplicateSubscription(e Entitlement) error {
	if e.Source.IsPaid() {
		return &AlreadyPaidError{Source: e.Source}
	}
	return nil
}
