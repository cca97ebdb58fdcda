package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rtwroastery/roastery-backend/internal/payments"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

const (
	defaultReconcileLimit = 200
	defaultReconcileGrace = 15 * time.Minute
)

type paymentReconciler interface {
	ReconcileOpen(ctx context.Context, cutoff time.Time, limit int) (payments.ReconcileResult, error)
}

// PaymentReconcileJobParams configures the payment reconcile job.
type PaymentReconcileJobParams struct {
	Logger   *logger.Logger
	Payments paymentReconciler
	Grace    time.Duration
	Limit    int
	Now      func() time.Time
}

// NewPaymentReconcileJob builds the job that re-checks sessions left open past
// the grace period.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		grace:    grace,
		limit:    limit,
		now:      now,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments paymentReconciler
	grace    time.Duration
	limit    int
	now      func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.grace)
	result, err := j.payments.ReconcileOpen(ctx, cutoff, j.limit)
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":   result.Checked,
		"confirmed": result.Confirmed,
		"expired":   result.Expired,
	})
	j.logg.Info(reportCtx, "payment reconcile loop complete")
	if err != nil {
		return fmt.Errorf("reconcile open sessions: %w", err)
	}
	return nil
}
