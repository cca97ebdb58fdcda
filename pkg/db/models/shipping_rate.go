package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ShippingRate is a flat regional delivery charge.
type ShippingRate struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Region      string          `gorm:"column:region;not null"`
	Rate        decimal.Decimal `gorm:"column:rate;type:numeric(12,2);not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *ShippingRate) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
