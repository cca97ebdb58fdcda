package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rtwroastery/roastery-backend/pkg/redis"
)

const (
	markProcessing = "processing"
	markDone       = "done"

	// a crashed handler frees the event for Stripe's next retry after this
	defaultInFlightTTL = 5 * time.Minute
)

// Claim is the outcome of trying to take ownership of a delivered event.
type Claim int

const (
	ClaimAcquired Claim = iota
	ClaimDone
	ClaimInFlight
)

func (c Claim) String() string {
	switch c {
	case ClaimAcquired:
		return "acquired"
	case ClaimDone:
		return "done"
	case ClaimInFlight:
		return "in_flight"
	}
	return fmt.Sprintf("claim(%d)", int(c))
}

type ledgerStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// EventLedger tracks webhook event ids through processing -> done so a
// retried delivery is applied at most once, and a delivery racing an
// in-flight one is turned away instead of acknowledged.
type EventLedger struct {
	store       ledgerStore
	scope       string
	doneTTL     time.Duration
	inFlightTTL time.Duration
}

func NewEventLedger(store ledgerStore, scope string, doneTTL time.Duration) (*EventLedger, error) {
	switch {
	case store == nil:
		return nil, errors.New("event ledger store is required")
	case scope == "":
		return nil, errors.New("event ledger scope is required")
	case doneTTL < 0:
		return nil, errors.New("event ledger ttl must be non-negative")
	}
	return &EventLedger{store: store, scope: scope, doneTTL: doneTTL, inFlightTTL: defaultInFlightTTL}, nil
}

func (l *EventLedger) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey(l.scope, eventID), nil
}

func (l *EventLedger) Claim(ctx context.Context, eventID string) (Claim, error) {
	key, err := l.key(eventID)
	if err != nil {
		return 0, err
	}
	// the second pass covers a processing mark expiring between SetNX and Get
	for range 2 {
		won, err := l.store.SetNX(ctx, key, markProcessing, l.inFlightTTL)
		if err != nil {
			return 0, fmt.Errorf("claim event: %w", err)
		}
		if won {
			return ClaimAcquired, nil
		}
		mark, err := l.store.Get(ctx, key)
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return 0, fmt.Errorf("read event mark: %w", err)
		case mark == markDone:
			return ClaimDone, nil
		default:
			return ClaimInFlight, nil
		}
	}
	return ClaimInFlight, nil
}

// Complete records eventID as applied for the ledger's retention window.
func (l *EventLedger) Complete(ctx context.Context, eventID string) error {
	key, err := l.key(eventID)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, markDone, l.doneTTL)
}

// Release drops the claim so the provider's retry can process eventID again.
func (l *EventLedger) Release(ctx context.Context, eventID string) error {
	key, err := l.key(eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}
