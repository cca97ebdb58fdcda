package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

type CreateSubscriptionRequest struct {
	CustomBlendID uuid.UUID `json:"custom_blend_id" validate:"required"`
	Frequency     string    `json:"frequency" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type SubscriptionDTO struct {
	ID            uuid.UUID                   `json:"id"`
	CustomBlendID uuid.UUID                   `json:"custom_blend_id"`
	Frequency     enums.SubscriptionFrequency `json:"frequency"`
	Status        enums.SubscriptionStatus    `json:"status"`
	NextDelivery  time.Time                   `json:"next_delivery"`
	CreatedAt     time.Time                   `json:"created_at"`
}

func FromModel(m models.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:            m.ID,
		CustomBlendID: m.CustomBlendID,
		Frequency:     m.Frequency,
		Status:        m.Status,
		NextDelivery:  m.NextDelivery,
		CreatedAt:     m.CreatedAt,
	}
}
