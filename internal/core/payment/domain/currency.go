package domain

import "strings"

// Currency is a closed set validated at the boundary. Cross-currency
// conversion is out of scope; both sides of a payment settle in the same
// currency.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CHF Currency = "CHF"
	BRL Currency = "BRL"
)

var currencies = map[Currency]bool{
	USD: true,
	EUR: true,
	GBP: true,
	JPY: true,
	CHF: true,
	BRL: true,
}

// Valid reports whether the currency is part of the supported set.
func (c Currency) Valid() bool {
	return currencies[c]
}

// ParseCurrency parses a 3-letter code, case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(s))
	if !c.Valid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}
