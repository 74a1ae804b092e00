/*
ledger.go - Pure payment-ledger arithmetic

PURPOSE:
  The single source of truth for "how much has been paid" and "is this
  enrollment fully paid". Both the payment-creation path and every payment
  mutation path go through these functions, so the derived IsPaid flag can
  never diverge from the underlying ledger.

CRITICAL INVARIANTS:
  1. Only COMPLETED payments count toward the total
  2. Remaining is clamped at zero, never negative
  3. No I/O here: total, side-effect-free functions over in-memory records

SEE ALSO:
  - reconcile.go: runs these after every payment mutation and persists IsPaid
*/
package school

import "github.com/shopspring/decimal"

// =============================================================================
// LEDGER CALCULATOR - pure functions
// =============================================================================

// TotalPaid sums the amounts of COMPLETED payments. Zero if none.
func TotalPaid(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status == PaymentCompleted {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Remaining returns max(0, price - totalPaid).
func Remaining(price, totalPaid decimal.Decimal) decimal.Decimal {
	r := price.Sub(totalPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// IsFullyPaid reports whether the completed total covers the price.
func IsFullyPaid(price, totalPaid decimal.Decimal) bool {
	return totalPaid.GreaterThanOrEqual(price)
}

// =============================================================================
// LEDGER SUMMARY - computed view used by payment responses
// =============================================================================

// LedgerSummary is the derived state of one enrollment's ledger.
type LedgerSummary struct {
	Price     decimal.Decimal
	TotalPaid decimal.Decimal
	Remaining decimal.Decimal
	FullyPaid bool
}

// Summarize computes the full derived state from the payment set and price.
func Summarize(price decimal.Decimal, payments []Payment) LedgerSummary {
	total := TotalPaid(payments)
	return LedgerSummary{
		Price:     price,
		TotalPaid: total,
		Remaining: Remaining(price, total),
		FullyPaid: IsFullyPaid(price, total),
	}
}
