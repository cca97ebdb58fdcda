package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/pagination"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// OrderLineRequest is one cart line submitted with an order. Names and unit
// prices are informational; the server prices lines itself.
type OrderLineRequest struct {
	ProductID     *uuid.UUID       `json:"product_id,omitempty"`
	CustomBlendID *uuid.UUID       `json:"custom_blend_id,omitempty"`
	Quantity      int              `json:"quantity"`
	Name          string           `json:"name,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateOrderRequest freezes the current cart into an order.
type CreateOrderRequest struct {
	Items           []OrderLineRequest    `json:"items" validate:"required,min=1,dive"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	ShippingRateID  *uuid.UUID            `json:"shipping_rate_id"`
	Fingerprint     string                `json:"fingerprint,omitempty"`
}

// UpdateStatusRequest is the admin fulfillment transition payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminFilters narrows the admin order list.
type AdminFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Limit         int
	// After continues a listing from the last row of the previous page.
	After *pagination.Cursor
}

// OrderPage is one page of the admin order listing.
type OrderPage = pagination.Page[OrderDTO]

// OrderDTO is the API view of an order.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	Items           types.OrderItems      `json:"items"`
	SubtotalAmount  decimal.Decimal       `json:"subtotal_amount"`
	ShippingCost    decimal.Decimal       `json:"shipping_cost"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	ShippingRateID  *uuid.UUID            `json:"shipping_rate_id,omitempty"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	SessionID       *string               `json:"session_id,omitempty"`
	Fingerprint     string                `json:"fingerprint"`
	Reused          bool                  `json:"reused,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func FromModel(o models.Order) OrderDTO {
	return OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           o.Items,
		SubtotalAmount:  o.SubtotalAmount,
		ShippingCost:    o.ShippingCost,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		ShippingRateID:  o.ShippingRateID,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		SessionID:       o.SessionID,
		Fingerprint:     o.Fingerprint,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
