package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to a transaction handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	return Base{db: tx}
}

// FindByID loads dest by primary key. A missing row becomes a typed not-found
// error naming the entity.
func (b Base) FindByID(ctx context.Context, dest any, id uuid.UUID, entity string) error {
	if err := b.DB(ctx).First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
	}
	return nil
}

// FindOwned loads dest by id and owner. Rows owned by someone else are
// reported as missing so ids never leak across identities.
func (b Base) FindOwned(ctx context.Context, dest any, id, userID uuid.UUID, entity string) error {
	if err := b.DB(ctx).First(dest, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
	}
	return nil
}
