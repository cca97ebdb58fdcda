package blends

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
	"github.com/rtwroastery/roastery-backend/pkg/money"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

const (
	MinQuantityGrams  = 250
	MaxQuantityGrams  = 1000
	QuantityStepGrams = 250
)

// PricePerGram is the flat rate for every custom blend regardless of origin.
var PricePerGram = decimal.RequireFromString("0.05")

// PriceFor returns the price of a blend of the given weight.
func PriceFor(grams int) decimal.Decimal {
	return money.Round2(PricePerGram.Mul(decimal.NewFromInt(int64(grams))))
}

// ValidateQuantity accepts 250..1000 grams in 250 gram steps.
func ValidateQuantity(grams int) error {
	if grams < MinQuantityGrams || grams > MaxQuantityGrams || grams%QuantityStepGrams != 0 {
		return fmt.Errorf("quantity must be between %d and %d grams in steps of %d", MinQuantityGrams, MaxQuantityGrams, QuantityStepGrams)
	}
	return nil
}

// ValidateComponents requires known origins whose shares add up to 100.
func ValidateComponents(components types.BlendComponents) error {
	if len(components) == 0 {
		return fmt.Errorf("blend components are required")
	}
	total := 0
	for origin, share := range components {
		if _, err := enums.ParseOrigin(origin); err != nil {
			return err
		}
		if share <= 0 || share > 100 {
			return fmt.Errorf("share for %s must be between 1 and 100", origin)
		}
		total += share
	}
	if total != 100 {
		return fmt.Errorf("blend component shares must total 100, got %d", total)
	}
	return nil
}
