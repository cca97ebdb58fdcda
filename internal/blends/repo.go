package blends

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/internal/repo"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
)

// Repository persists custom blends.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, blend *models.CustomBlend) error {
	return r.DB(ctx).Create(blend).Error
}

// ListByUser returns the user's blends, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CustomBlend, error) {
	var rows []models.CustomBlend
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindForUser loads a blend the user owns.
func (r *Repository) FindForUser(ctx context.Context, userID, blendID uuid.UUID) (*models.CustomBlend, error) {
	var blend models.CustomBlend
	if err := r.FindOwned(ctx, &blend, blendID, userID, "custom blend"); err != nil {
		return nil, err
	}
	return &blend, nil
}

// FindByIDsForUser loads the subset of ids owned by the user.
func (r *Repository) FindByIDsForUser(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CustomBlend, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.CustomBlend
	err := r.DB(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&rows).Error
	return rows, err
}
