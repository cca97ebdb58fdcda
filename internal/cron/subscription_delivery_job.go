package cron

import (
	"context"
	"fmt"

	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

const defaultDeliveryBatch = 500

type deliveryScheduler interface {
	AdvanceDue(ctx context.Context, limit int) (int, error)
}

// SubscriptionDeliveryJobParams configures the subscription delivery job.
type SubscriptionDeliveryJobParams struct {
	Logger        *logger.Logger
	Subscriptions deliveryScheduler
	Batch         int
}

// NewSubscriptionDeliveryJob builds the job that rolls due subscriptions over to
// their next delivery date.
func NewSubscriptionDeliveryJob(params SubscriptionDeliveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultDeliveryBatch
	}
	return &subscriptionDeliveryJob{logg: params.Logger, subs: params.Subscriptions, batch: batch}, nil
}

type subscriptionDeliveryJob struct {
	logg  *logger.Logger
	subs  deliveryScheduler
	batch int
}

func (j *subscriptionDeliveryJob) Name() string { return "subscription-delivery" }

// Run drains due subscriptions in batches until a batch comes back short.
func (j *subscriptionDeliveryJob) Run(ctx context.Context) error {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		advanced, err := j.subs.AdvanceDue(ctx, j.batch)
		total += advanced
		if err != nil {
			return fmt.Errorf("advance due subscriptions: %w", err)
		}
		if advanced < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "advanced", total), "subscription delivery loop complete")
	return nil
}
