package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is one priced line frozen into an order at creation time.
type OrderItem struct {
	ProductID     *uuid.UUID      `json:"product_id,omitempty"`
	CustomBlendID *uuid.UUID      `json:"custom_blend_id,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	Missing       bool            `json:"missing,omitempty"`
}

// OrderItems is stored as a json document on the order row.
type OrderItems []OrderItem

// BlendComponents maps an origin to its percentage share of a blend.
type BlendComponents map[string]int
