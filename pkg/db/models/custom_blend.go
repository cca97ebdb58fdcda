package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// CustomBlend is a customer-composed blend, priced by weight.
type CustomBlend struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Name            string                `gorm:"column:name;not null"`
	Origin          enums.Origin          `gorm:"column:origin;type:text;not null"`
	RoastLevel      enums.RoastLevel      `gorm:"column:roast_level;type:text;not null"`
	GrindSize       enums.GrindSize       `gorm:"column:grind_size;type:text;not null"`
	BlendComponents types.BlendComponents `gorm:"column:blend_components;type:jsonb;serializer:json"`
	QuantityGrams   int                   `gorm:"column:quantity_grams;not null"`
	Price           decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *CustomBlend) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}
