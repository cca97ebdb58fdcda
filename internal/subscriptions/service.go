package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

// Service manages recurring deliveries of a user's custom blends.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateSubscriptionRequest) (*SubscriptionDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error)
	UpdateStatus(ctx context.Context, userID, subscriptionID uuid.UUID, req UpdateStatusRequest) (*SubscriptionDTO, error)
	AdvanceDue(ctx context.Context, limit int) (int, error)
}

type blendLookup interface {
	FindForUser(ctx context.Context, userID, blendID uuid.UUID) (*models.CustomBlend, error)
}

type ServiceParams struct {
	Repo   *Repository
	Blends blendLookup
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   *Repository
	blends blendLookup
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Blends == nil {
		return nil, fmt.Errorf("blend lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, blends: params.Blends, logg: params.Logger, now: now}, nil
}

// NextDelivery returns the delivery slot one frequency period after from.
func NextDelivery(from time.Time, frequency enums.SubscriptionFrequency) time.Time {
	return from.AddDate(0, 0, frequency.Days())
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateSubscriptionRequest) (*SubscriptionDTO, error) {
	frequency, err := enums.ParseSubscriptionFrequency(strings.ToLower(strings.TrimSpace(req.Frequency)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "frequency must be weekly, biweekly or monthly")
	}
	if req.CustomBlendID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom_blend_id is required")
	}
	if _, err := s.blends.FindForUser(ctx, userID, req.CustomBlendID); err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:        userID,
		CustomBlendID: req.CustomBlendID,
		Frequency:     frequency,
		Status:        enums.SubscriptionStatusActive,
		NextDelivery:  NextDelivery(s.now().UTC(), frequency),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
	}
	s.logg.Info(s.logg.WithField(ctx, "subscription_id", sub.ID.String()), "subscriptions.created")
	dto := FromModel(*sub)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	out := make([]SubscriptionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

// UpdateStatus pauses, resumes or cancels a subscription. Cancelled is final.
// Resuming after a missed slot schedules the next delivery from now.
func (s *service) UpdateStatus(ctx context.Context, userID, subscriptionID uuid.UUID, req UpdateStatusRequest) (*SubscriptionDTO, error) {
	target, err := enums.ParseSubscriptionStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	sub, err := s.repo.FindForUser(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == target {
		dto := FromModel(*sub)
		return &dto, nil
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is cancelled")
	}

	next := sub.NextDelivery
	now := s.now().UTC()
	if target == enums.SubscriptionStatusActive && !next.After(now) {
		next = NextDelivery(now, sub.Frequency)
	}
	if err := s.repo.UpdateStatus(ctx, sub.ID, target, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
	}
	sub.Status = target
	sub.NextDelivery = next
	dto := FromModel(*sub)
	return &dto, nil
}

// AdvanceDue moves every due active subscription to its following slot and
// returns how many were advanced. Slots missed while the job was down are
// skipped rather than replayed.
func (s *service) AdvanceDue(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due subscriptions")
	}
	advanced := 0
	for _, sub := range due {
		if sub.Frequency.Days() <= 0 {
			continue
		}
		next := NextDelivery(sub.NextDelivery, sub.Frequency)
		for !next.After(now) {
			next = NextDelivery(next, sub.Frequency)
		}
		ok, err := s.repo.Advance(ctx, sub.ID, next)
		if err != nil {
			return advanced, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance subscription")
		}
		if ok {
			advanced++
			s.logg.Info(s.logg.WithField(ctx, "subscription_id", sub.ID.String()), "subscriptions.delivery_scheduled")
		}
	}
	return advanced, nil
}
