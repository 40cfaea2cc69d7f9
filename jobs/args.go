// Package jobs runs payment follow-ups and scheduled renewals on river.
package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// PaymentApprovedArgs asks for a Mercado Pago payment to be checked and,
// when approved, settled.
type PaymentApprovedArgs struct {
	PaymentID string `json:"payment_id"`
}

func (PaymentApprovedArgs) Kind() string { return "payment_approved" }

// Mercado Pago repeats notifications; one job per payment per day is enough.
func (PaymentApprovedArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: 24 * time.Hour},
	}
}

// RenewalArgs triggers one renewal sweep.
type RenewalArgs struct {
	Limit int `json:"limit,omitempty"`
}

func (RenewalArgs) Kind() string { return "billing_renewals" }
