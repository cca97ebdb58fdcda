package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// Subscription schedules recurring deliveries of a custom blend.
type Subscription struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	CustomBlendID uuid.UUID                   `gorm:"column:custom_blend_id;type:uuid;not null"`
	Frequency     enums.SubscriptionFrequency `gorm:"column:frequency;type:text;not null"`
	Status        enums.SubscriptionStatus    `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	NextDelivery  time.Time                   `gorm:"column:next_delivery;not null;index"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
