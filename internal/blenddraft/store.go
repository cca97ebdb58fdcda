package blenddraft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

// StorageKey names the device-scoped draft slot. It never includes the
// identity, so a draft survives sign-in.
const StorageKey = "pendingBlend"

// Stored is a persisted draft plus the deferred-save intent.
type Stored struct {
	Draft        Draft
	DeferredSave bool
}

// Store persists the single device draft.
type Store interface {
	Load(ctx context.Context) (*Stored, error)
	Save(ctx context.Context, stored Stored) error
	Purge(ctx context.Context) error
}

// SQLiteStore keeps the draft in the device database.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("device database is required")
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns nil when no draft is stored.
func (s *SQLiteStore) Load(ctx context.Context) (*Stored, error) {
	var row models.DeviceDraft
	err := s.db.WithContext(ctx).First(&row, "key = ?", StorageKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read blend draft")
	}
	var draft Draft
	if err := json.Unmarshal(row.Payload, &draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode blend draft")
	}
	return &Stored{Draft: draft, DeferredSave: row.DeferredSave}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, stored Stored) error {
	payload, err := json.Marshal(stored.Draft)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode blend draft")
	}
	row := models.DeviceDraft{Key: StorageKey, Payload: payload, DeferredSave: stored.DeferredSave}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "deferred_save", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write blend draft")
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&models.DeviceDraft{}, "key = ?", StorageKey).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge blend draft")
	}
	return nil
}
