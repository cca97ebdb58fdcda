package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/rtwroastery/roastery-backend/api/responses"
	stripewebhook "github.com/rtwroastery/roastery-backend/internal/webhooks/stripe"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

const maxWebhookBodyBytes int64 = 1 << 16

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type EventLedger interface {
	Claim(ctx context.Context, eventID string) (stripewebhook.Claim, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// StripeWebhook settles orders from Stripe checkout session events.
//
// An event already applied is acknowledged with 200. One still being handled
// by another delivery gets 409 so Stripe retries it later. A failed event is
// released before the error goes back, letting the retry run it again.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, ledger EventLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || ledger == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		event, err := verifier.ConstructEvent(payload, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}
		ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

		claim, err := ledger.Claim(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim stripe event"))
			return
		}
		switch claim {
		case stripewebhook.ClaimDone:
			logg.Info(ctx, "stripe.webhook.duplicate")
			responses.WriteSuccess(w, nil)
			return
		case stripewebhook.ClaimInFlight:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "event delivery already in progress"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if relErr := ledger.Release(ctx, event.ID); relErr != nil {
				logg.Error(ctx, "stripe.webhook.release_failed", relErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		// the event is applied either way; a lost done mark only means a late
		// retry gets replayed against idempotent confirmation
		if err := ledger.Complete(ctx, event.ID); err != nil {
			logg.Error(ctx, "stripe.webhook.complete_failed", err)
		}
		logg.Info(ctx, "stripe.webhook.processed")
		responses.WriteSuccess(w, nil)
	}
}
