package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceDraft holds the in-progress blend wizard state on a single device.
// Rows are keyed by a device-scoped name and never by identity.
type DeviceDraft struct {
	Key          string    `gorm:"column:key;primaryKey"`
	Payload      []byte    `gorm:"column:payload;not null"`
	DeferredSave bool      `gorm:"column:deferred_save;not null;default:false"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// GuestCartItem is an anonymous cart line kept on the device.
type GuestCartItem struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     *uuid.UUID `gorm:"column:product_id;type:uuid"`
	CustomBlendID *uuid.UUID `gorm:"column:custom_blend_id;type:uuid"`
	Quantity      int        `gorm:"column:quantity;not null;default:1"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (g *GuestCartItem) BeforeCreate(*gorm.DB) error {
	assignID(&g.ID)
	return nil
}

// DeviceCredential stores the bearer token issued to this device.
type DeviceCredential struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Token     string    `gorm:"column:token;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
