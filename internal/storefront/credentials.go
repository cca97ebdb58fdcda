package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

// CredentialKey names the stored bearer token slot.
const CredentialKey = "authToken"

// CredentialStore keeps the device's bearer token between runs.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("device database is required")
	}
	return &CredentialStore{db: db}, nil
}

// Load returns "" when nothing is stored.
func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	var row models.DeviceCredential
	err := s.db.WithContext(ctx).First(&row, "key = ?", CredentialKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read credential")
	}
	return row.Token, nil
}

func (s *CredentialStore) Save(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear(ctx)
	}
	row := models.DeviceCredential{Key: CredentialKey, Token: token}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write credential")
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&models.DeviceCredential{}, "key = ?", CredentialKey).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear credential")
	}
	return nil
}
