package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// Repository persists payment transactions, one per gateway session.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindBySession returns the transaction for a gateway session, or nil.
func (r *Repository) FindBySession(ctx context.Context, sessionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// MarkPaid records the payment once; later calls report false.
func (r *Repository) MarkPaid(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("session_id = ? AND payment_status <> ?", sessionID, enums.PaymentStatusPaid).
		Updates(map[string]any{"payment_status": enums.PaymentStatusPaid, "paid_at": at})
	return res.RowsAffected > 0, res.Error
}

// MarkExpired closes an open transaction.
func (r *Repository) MarkExpired(ctx context.Context, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("session_id = ? AND payment_status = ?", sessionID, enums.PaymentStatusOpen).
		Update("payment_status", enums.PaymentStatusExpired)
	return res.RowsAffected > 0, res.Error
}

// ListOpenBefore returns open transactions created before cutoff, oldest first.
func (r *Repository) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	q := r.db.WithContext(ctx).
		Where("payment_status = ? AND created_at < ?", enums.PaymentStatusOpen, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ListForOrder returns the order's transactions, newest first.
func (r *Repository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
