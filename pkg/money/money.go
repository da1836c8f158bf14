package money

import "github.com/shopspring/decimal"

// TaxCents computes the tax amount in cents for a subtotal, given a rate in
// basis points (1bp = 0.01%). Rounding is half-up to the nearest cent, which
// matches what the register displays.
func TaxCents(subtotalCents int, rateBasisPoints int) int {
	if subtotalCents <= 0 || rateBasisPoints <= 0 {
		return 0
	}
	tax := decimal.NewFromInt(int64(subtotalCents)).
		Mul(decimal.NewFromInt(int64(rateBasisPoints))).
		Div(decimal.NewFromInt(10000)).
		Round(0)
	return int(tax.IntPart())
}

// ChangeCents returns the change due for a payment, never negative.
func ChangeCents(amountPaidCents, totalCents int) int {
	change := amountPaidCents - totalCents
	if change < 0 {
		return 0
	}
	return change
}
