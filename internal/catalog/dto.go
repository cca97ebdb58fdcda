package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// ProductDTO is the public catalog view of a product.
type ProductDTO struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	Origin      enums.Origin     `json:"origin"`
	RoastLevel  enums.RoastLevel `json:"roast_level"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Available   bool             `json:"available"`
	CreatedAt   time.Time        `json:"created_at"`
}

// CreateProductRequest is the admin payload for adding a product.
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,notblank"`
	Description string  `json:"description"`
	Price       string  `json:"price" validate:"required,money"`
	Origin      string  `json:"origin" validate:"required"`
	RoastLevel  string  `json:"roast_level" validate:"required"`
	ImageURL    *string `json:"image_url,omitempty"`
	Available   *bool   `json:"available,omitempty"`
}

func FromModel(p models.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Origin:      p.Origin,
		RoastLevel:  p.RoastLevel,
		ImageURL:    p.ImageURL,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
	}
}
