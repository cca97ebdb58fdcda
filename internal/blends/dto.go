package blends

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// CreateBlendRequest is the payload for composing a custom blend.
type CreateBlendRequest struct {
	Name            string                `json:"name" validate:"required,notblank"`
	Origin          string                `json:"origin" validate:"required"`
	RoastLevel      string                `json:"roast_level" validate:"required"`
	GrindSize       string                `json:"grind_size" validate:"required"`
	BlendComponents types.BlendComponents `json:"blend_components"`
	Quantity        int                   `json:"quantity" validate:"required"`
}

// BlendDTO is the owner's view of a stored blend.
type BlendDTO struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	Name            string                `json:"name"`
	Origin          enums.Origin          `json:"origin"`
	RoastLevel      enums.RoastLevel      `json:"roast_level"`
	GrindSize       enums.GrindSize       `json:"grind_size"`
	BlendComponents types.BlendComponents `json:"blend_components"`
	Quantity        int                   `json:"quantity"`
	Price           decimal.Decimal       `json:"price"`
	CreatedAt       time.Time             `json:"created_at"`
}

func FromModel(b models.CustomBlend) BlendDTO {
	return BlendDTO{
		ID:              b.ID,
		UserID:          b.UserID,
		Name:            b.Name,
		Origin:          b.Origin,
		RoastLevel:      b.RoastLevel,
		GrindSize:       b.GrindSize,
		BlendComponents: b.BlendComponents,
		Quantity:        b.QuantityGrams,
		Price:           b.Price,
		CreatedAt:       b.CreatedAt,
	}
}
