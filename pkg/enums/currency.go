package enums

import "strings"

// Currency is a lowercase ISO 4217 code as the payment gateway expects it.
type Currency string

const CurrencyUSD Currency = "usd"

var currencies = valueSet[Currency]{CurrencyUSD}

func (c Currency) String() string { return string(c) }
func (c Currency) IsValid() bool  { return currencies.contains(c) }

// ParseCurrency ignores case and surrounding space.
func ParseCurrency(value string) (Currency, error) {
	return currencies.parse("currency", strings.ToLower(strings.TrimSpace(value)))
}
