package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/PaulFidika/paywallkit/billing"
	"github.com/PaulFidika/paywallkit/identity"
	"github.com/PaulFidika/paywallkit/payments/mercadopago"
	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

// NotificationPaymentConfirmed is the notif_emails kind recorded per payment.
const NotificationPaymentConfirmed = "payment_confirmed"

type PaymentFetcher interface {
	GetPayment(ctx context.Context, id string) (mercadopago.Payment, error)
}

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (mercadopago.Preference, error)
}

type PaymentLedger interface {
	MarkPaymentApproved(ctx context.Context, userID, paymentID string, paidAt time.Time) (int64, error)
	RecordNotification(ctx context.Context, userID, paymentID, kind string) (bool, error)
}

type RenewalLedger interface {
	DueRenewals(ctx context.Context, asOf time.Time, limit int) ([]billing.DueBill, error)
	InsertRenewal(ctx context.Context, bill billing.DueBill, preferenceID string) error
}

type SourceInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type ContactLookup interface {
	GetContact(ctx context.Context, userID string) (*identity.Contact, error)
}

// PaymentApprovedWorker settles a payment once Mercado Pago reports it approved.
type PaymentApprovedWorker struct {
	river.WorkerDefaults[PaymentApprovedArgs]

	Payments PaymentFetcher
	Ledger   PaymentLedger
	Cache    SourceInvalidator
	Contacts ContactLookup
	Log      logrus.FieldLogger
}

func (w *PaymentApprovedWorker) Work(ctx context.Context, job *river.Job[PaymentApprovedArgs]) error {
	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("payment_id", job.Args.PaymentID)

	p, err := w.Payments.GetPayment(ctx, job.Args.PaymentID)
	if err != nil {
		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			log.Warn("payment not found; dropping notification")
			return river.JobCancel(err)
		}
		return fmt.Errorf("fetch payment: %w", err)
	}
	if !p.Approved() {
		log.WithField("status", p.Status).Debug("payment not approved yet")
		return nil
	}
	if p.ExternalReference == "" {
		log.Warn("approved payment without external reference")
		return nil
	}

	paidAt := time.Now()
	if p.DateApproved != nil {
		paidAt = *p.DateApproved
	}
	paymentID := strconv.FormatInt(p.ID, 10)
	userID := p.ExternalReference
	log = log.WithField("user_id", userID)

	n, err := w.Ledger.MarkPaymentApproved(ctx, userID, paymentID, paidAt)
	if err != nil {
		return fmt.Errorf("mark approved: %w", err)
	}
	if w.Cache != nil {
		if err := w.Cache.Invalidate(ctx, userID); err != nil {
			log.WithError(err).Warn("paid source cache invalidation failed")
		}
	}

	first, err := w.Ledger.RecordNotification(ctx, userID, paymentID, NotificationPaymentConfirmed)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if !first {
		log.Debug("payment already confirmed")
		return nil
	}
	entry := log.WithField("periods", n)
	if w.Contacts != nil {
		if c, err := w.Contacts.GetContact(ctx, userID); err == nil && c != nil {
			entry = entry.WithField("email", c.Email)
		}
	}
	entry.Info("payment confirmed")
	return nil
}

// RenewalWorker opens renewal checkouts for paid periods that have run out.
type RenewalWorker struct {
	river.WorkerDefaults[RenewalArgs]

	Ledger      RenewalLedger
	Preferences PreferenceCreator
	Log         logrus.FieldLogger
	Now         func() time.Time
}

func (w *RenewalWorker) Work(ctx context.Context, job *river.Job[RenewalArgs]) error {
	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	y, m, d := now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now().Location())

	due, err := w.Ledger.DueRenewals(ctx, today, job.Args.Limit)
	if err != nil {
		return fmt.Errorf("due renewals: %w", err)
	}
	processed := 0
	for _, bill := range due {
		bl := log.WithFields(logrus.Fields{"billing_id": bill.ID, "user_id": bill.UserID})
		if bill.Amount <= 0 {
			bl.Warn("skipping renewal without amount")
			continue
		}
		freq, err := billing.NormalizeFrequency(bill.Frequency)
		if err != nil {
			bl.WithField("frequency", bill.Frequency).Warn("skipping renewal with unknown frequency")
			continue
		}
		bill.Frequency = freq
		plan := bill.Plan
		if plan == "" {
			plan = "Individual"
		}
		pref, err := w.Preferences.CreatePreference(ctx, mercadopago.PreferenceRequest{
			UserID:    bill.UserID,
			Plan:      plan,
			Frequency: freq,
			Amount:    bill.Amount,
		})
		if err != nil {
			bl.WithError(err).Warn("renewal preference failed")
			continue
		}
		if err := w.Ledger.InsertRenewal(ctx, bill, pref.ID); err != nil {
			bl.WithError(err).Error("renewal insert failed")
			continue
		}
		processed++
	}
	log.WithFields(logrus.Fields{"due": len(due), "processed": processed}).Info("renewal sweep finished")
	return nil
}
