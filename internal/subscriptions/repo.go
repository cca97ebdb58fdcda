package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/internal/repo"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// Repository persists blend subscriptions.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.DB(ctx).Create(sub).Error
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.FindOwned(ctx, &sub, id, userID, "subscription"); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, nextDelivery time.Time) error {
	return r.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "next_delivery": nextDelivery}).Error
}

// ListDue returns active subscriptions whose next delivery is at or before now.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	q := r.DB(ctx).
		Where("status = ? AND next_delivery <= ?", enums.SubscriptionStatusActive, now).
		Order("next_delivery ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// Advance moves next_delivery forward to the given slot. It reports false when
// another worker already advanced the row that far.
func (r *Repository) Advance(ctx context.Context, id uuid.UUID, to time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND next_delivery < ?", id, enums.SubscriptionStatusActive, to).
		Update("next_delivery", to)
	return res.RowsAffected > 0, res.Error
}
