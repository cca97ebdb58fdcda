package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// ShippingViolationDetail lists what a caller must supply before checkout proceeds.
type ShippingViolationDetail struct {
	MissingFields []string `json:"missing_fields,omitempty"`
	RateRequired  bool     `json:"shipping_rate_required,omitempty"`
}

// ValidateShipping enforces the checkout precondition: every address field is
// filled in and a shipping rate has been chosen.
func ValidateShipping(address types.ShippingAddress, rateID *uuid.UUID) error {
	detail := ShippingViolationDetail{MissingFields: address.MissingFields()}
	if rateID == nil || *rateID == uuid.Nil {
		detail.RateRequired = true
	}
	if len(detail.MissingFields) == 0 && !detail.RateRequired {
		return nil
	}

	msg := "shipping rate must be selected"
	if len(detail.MissingFields) > 0 {
		msg = fmt.Sprintf("shipping address incomplete: %d field(s) missing", len(detail.MissingFields))
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(detail)
}

// ValidateLineReference enforces the one-of invariant on a cart line: it must
// reference a product or a custom blend, never both and never neither.
func ValidateLineReference(productID, blendID *uuid.UUID) error {
	hasProduct := productID != nil && *productID != uuid.Nil
	hasBlend := blendID != nil && *blendID != uuid.Nil
	switch {
	case hasProduct && hasBlend:
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item cannot reference both a product and a custom blend")
	case !hasProduct && !hasBlend:
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item must reference a product or a custom blend")
	}
	return nil
}
