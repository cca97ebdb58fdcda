// Package pricing computes cart totals. It never errors: an empty cart
// prices to zero and a missing shipping selection costs nothing.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/money"
)

// Line is anything that can report its extended price.
type Line interface {
	LineTotal() decimal.Decimal
}

// Quote is the priced breakdown of a cart.
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// Compute sums the lines and adds the selected shipping rate, if any.
// Amounts keep full precision; call Rounded at the persistence or display edge.
func Compute[L Line](lines []L, shippingRate *decimal.Decimal) Quote {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	shipping := decimal.Zero
	if shippingRate != nil {
		shipping = *shippingRate
	}
	return Quote{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal.Add(shipping),
	}
}

// Rounded returns the quote with every amount rounded to cents. The total is
// re-derived from the rounded parts so it always equals subtotal + shipping.
func (q Quote) Rounded() Quote {
	subtotal := money.Round2(q.Subtotal)
	shipping := money.Round2(q.ShippingCost)
	return Quote{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal.Add(shipping),
	}
}

// Display renders the rounded quote for humans.
func (q Quote) Display() (subtotal, shipping, total string) {
	r := q.Rounded()
	return money.Format(r.Subtotal), money.Format(r.ShippingCost), money.Format(r.Total)
}
