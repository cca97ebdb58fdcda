package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem references exactly one of a product or a custom blend.
type CartItem struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID     *uuid.UUID `gorm:"column:product_id;type:uuid"`
	CustomBlendID *uuid.UUID `gorm:"column:custom_blend_id;type:uuid"`
	Quantity      int        `gorm:"column:quantity;not null;default:1"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
