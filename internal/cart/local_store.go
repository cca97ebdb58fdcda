package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/checkout"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

// Store is the cart surface used on the device. The remote API client
// implements it for signed-in users and LocalStore for guests.
type Store interface {
	Items(ctx context.Context) ([]LineItemRef, error)
	Add(ctx context.Context, ref LineItemRef) (*LineItemRef, error)
	Remove(ctx context.Context, itemID uuid.UUID) error
	Clear(ctx context.Context) error
}

// LocalStore keeps an anonymous cart in the device database.
type LocalStore struct {
	db *gorm.DB
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(db *gorm.DB) (*LocalStore, error) {
	if db == nil {
		return nil, fmt.Errorf("device database is required")
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Items(ctx context.Context) ([]LineItemRef, error) {
	var rows []models.GuestCartItem
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read guest cart")
	}
	out := make([]LineItemRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, LineItemRef{
			ID:            row.ID,
			ProductID:     row.ProductID,
			CustomBlendID: row.CustomBlendID,
			Quantity:      row.Quantity,
		})
	}
	return out, nil
}

// Add appends ref, merging quantities when the same reference is present.
func (s *LocalStore) Add(ctx context.Context, ref LineItemRef) (*LineItemRef, error) {
	if err := checkout.ValidateLineReference(ref.ProductID, ref.CustomBlendID); err != nil {
		return nil, err
	}
	if ref.Quantity < 1 {
		ref.Quantity = 1
	}

	var out LineItemRef
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.GuestCartItem{})
		if ref.ProductID != nil {
			q = q.Where("product_id = ?", *ref.ProductID)
		} else {
			q = q.Where("custom_blend_id = ?", *ref.CustomBlendID)
		}
		var existing models.GuestCartItem
		err := q.First(&existing).Error
		switch {
		case err == nil:
			existing.Quantity += ref.Quantity
			if err := tx.Model(&existing).Update("quantity", existing.Quantity).Error; err != nil {
				return err
			}
			out = LineItemRef{ID: existing.ID, ProductID: existing.ProductID, CustomBlendID: existing.CustomBlendID, Quantity: existing.Quantity}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		row := models.GuestCartItem{ProductID: ref.ProductID, CustomBlendID: ref.CustomBlendID, Quantity: ref.Quantity}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = LineItemRef{ID: row.ID, ProductID: row.ProductID, CustomBlendID: row.CustomBlendID, Quantity: row.Quantity}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write guest cart")
	}
	return &out, nil
}

func (s *LocalStore) Remove(ctx context.Context, itemID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.GuestCartItem{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "remove guest cart item")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.GuestCartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear guest cart")
	}
	return nil
}

// Drain returns the guest lines and empties the local cart, used when the
// device signs in and the lines move to the server cart.
func (s *LocalStore) Drain(ctx context.Context) ([]LineItemRef, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := s.Clear(ctx); err != nil {
		return nil, err
	}
	return items, nil
}
