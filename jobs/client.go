package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/robfig/cron/v3"
)

// DefaultRenewalSchedule runs the renewal sweep daily at 06:00.
const DefaultRenewalSchedule = "0 6 * * *"

// Inserter is satisfied by *river.Client.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Queue enqueues follow-up jobs from request handlers.
type Queue struct {
	ins Inserter
}

func NewQueue(ins Inserter) *Queue { return &Queue{ins: ins} }

func (q *Queue) EnqueuePaymentApproved(ctx context.Context, paymentID string) error {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return fmt.Errorf("jobs: payment id required")
	}
	if q == nil || q.ins == nil {
		return fmt.Errorf("jobs: queue not configured")
	}
	_, err := q.ins.Insert(ctx, PaymentApprovedArgs{PaymentID: paymentID}, nil)
	return err
}

type Options struct {
	MaxWorkers int
	// RenewalSchedule is a standard five-field cron expression.
	RenewalSchedule string
	RenewalLimit    int
}

// NewClient builds the river client with both workers registered and the
// renewal sweep scheduled.
func NewClient(pool *pgxpool.Pool, payment *PaymentApprovedWorker, renewal *RenewalWorker, opts Options) (*river.Client[pgx.Tx], error) {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	spec := opts.RenewalSchedule
	if spec == "" {
		spec = DefaultRenewalSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("jobs: renewal schedule %q: %w", spec, err)
	}

	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, payment); err != nil {
		return nil, err
	}
	if err := river.AddWorkerSafely(workers, renewal); err != nil {
		return nil, err
	}

	limit := opts.RenewalLimit
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.MaxWorkers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(schedule, func() (river.JobArgs, *river.InsertOpts) {
				return RenewalArgs{Limit: limit}, nil
			}, nil),
		},
	})
}
