package core

import "github.com/shopspring/decimal"

// Balance is derived from the full transaction set and never stored.
type Balance struct {
	Income  decimal.Decimal
	Outcome decimal.Decimal
	Total   decimal.Decimal
}

// Add folds t into the balance and returns the result.
func (b Balance) Add(t Transaction) Balance {
	switch t.Type {
	case Income:
		b.Income = b.Income.Add(t.Value)
	case Outcome:
		b.Outcome = b.Outcome.Add(t.Value)
	}
	b.Total = b.Income.Sub(b.Outcome)
	return b
}

// Covers reports whether an outcome of v keeps the total non-negative.
func (b Balance) Covers(v decimal.Decimal) bool {
	return !v.GreaterThan(b.Total)
}
