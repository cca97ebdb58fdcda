package payments

import (
	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// CreateSessionRequest starts hosted checkout for an order.
type CreateSessionRequest struct {
	OrderID   uuid.UUID `json:"order_id" validate:"required"`
	OriginURL string    `json:"origin_url" validate:"required,http_url"`
}

// SessionResponse carries the redirect target. When the order turns out to
// be paid already, URL is empty and PaymentStatus is paid.
type SessionResponse struct {
	SessionID     string              `json:"session_id"`
	URL           string              `json:"url,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// StatusResponse reports a session's state.
type StatusResponse struct {
	Status        string              `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	AmountTotal   int64               `json:"amount_total"`
	Currency      string              `json:"currency"`
	Metadata      map[string]string   `json:"metadata,omitempty"`
}
