package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

var numberCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "", ",", ".")

// ParseDecimal reads amounts the way people and ISS write them: spaces as
// thousands separators and either comma or dot as decimal mark.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	cleaned := numberCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" || strings.EqualFold(cleaned, "none") || strings.EqualFold(cleaned, "null") || strings.EqualFold(cleaned, "nan") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseNullDecimal is ParseDecimal into a nullable value.
func ParseNullDecimal(s string) decimal.NullDecimal {
	d, ok := ParseDecimal(s)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}
