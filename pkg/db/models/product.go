package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// Product is a catalog coffee sold as-is.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	Description string           `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Origin      enums.Origin     `gorm:"column:origin;type:text;not null"`
	RoastLevel  enums.RoastLevel `gorm:"column:roast_level;type:text;not null"`
	ImageURL    *string          `gorm:"column:image_url"`
	Available   bool             `gorm:"column:available;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
