package domain

import "github.com/shopspring/decimal"

// DefaultCurrency is the regulator currency used when an entity does not
// carry an explicit one. All monetary thresholds in this system are
// expressed in NGN minor units.
const DefaultCurrency = "NGN"

// Money pairs a decimal amount with its ISO-ish currency code. Decimal
// is used instead of float64 throughout so amount comparisons against
// regulatory thresholds never suffer binary floating point drift.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NGN(amount decimal.Decimal) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

func (m Money) GTE(other decimal.Decimal) bool {
	return m.Amount.GreaterThanOrEqual(other)
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}
