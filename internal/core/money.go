// Package core holds the ledger's value types.
//
// This file contains parsing of monetary amounts coming from forms and CSV
// feeds.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// centsPlaces is the precision every stored amount is kept at.
const centsPlaces = 2

// ParseValue converts a decimal string into a non-negative amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. The
// result is rounded half-up to cents. A leading minus sign, thousands
// separators or any other garbage is rejected with ErrInvalidValue. A comma
// followed by exactly three digits reads as thousands grouping and is
// rejected too. Zero is allowed.
//
// Examples:
//   ParseValue("12.34") -> 12.34, nil
//   ParseValue("12,34") -> 12.34, nil
//   ParseValue("0.005") -> 0.01, nil
//   ParseValue("1,000") -> 0, ErrInvalidValue
//   ParseValue("-1")    -> 0, ErrInvalidValue
func ParseValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidValue
	}
	if strings.Count(s, ",") > 1 || (strings.Contains(s, ",") && strings.Contains(s, ".")) {
		return decimal.Zero, ErrInvalidValue
	}
	if i := strings.IndexByte(s, ','); i >= 0 && len(s)-i-1 == 3 {
		return decimal.Zero, ErrInvalidValue
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidValue
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidValue
	}
	if v.IsNegative() {
		return decimal.Zero, ErrInvalidValue
	}
	return v.Round(centsPlaces), nil
}
