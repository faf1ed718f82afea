package refund

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"travel-platform/internal/booking"
	"travel-platform/internal/category"
)

// Pure refund calculation. No clock, no storage: callers pass "now" so the
// whole thing stays deterministic and testable in isolation.

// Quote is the outcome of a refund-tier evaluation for one booking.
type Quote struct {
	RefundPercentage  int
	RefundAmount      decimal.Decimal
	CashbackDeduction decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// HoursUntilDeparture returns fractional hours from now until departure,
// clamped at zero once departure has passed.
func HoursUntilDeparture(departure, now time.Time) float64 {
	h := departure.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Calculate evaluates the refund tiers for a booking at the given instant.
//
// Tier selection: tiers are sorted descending by HoursBeforeDeparture and the
// first tier whose threshold is <= hoursUntilDeparture wins, i.e. the most
// generous applicable tier. A booking-level RefundPolicy override takes
// precedence over the category table.
func Calculate(b booking.Booking, now time.Time) Quote {
	tiers := b.RefundPolicy
	if len(tiers) == 0 {
		tiers = category.RefundTiers(b.CategorySlug)
	}

	hoursUntil := HoursUntilDeparture(b.Departure(), now)

	sorted := make([]category.Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].HoursBeforeDeparture > sorted[j].HoursBeforeDeparture
	})

	pct := 0
	for _, tier := range sorted {
		if hoursUntil >= float64(tier.HoursBeforeDeparture) {
			pct = tier.RefundPercentage
			break
		}
	}

	total := b.Pricing.Total
	cashback := b.Pricing.CashbackEarned
	pctDec := decimal.NewFromInt(int64(pct))

	refundAmount := total.Mul(pctDec).Div(hundred).Round(2)

	var deduction decimal.Decimal
	if pct == 100 {
		// Full refund claws back the entire cashback, untouched by rounding.
		deduction = cashback
	} else {
		deduction = cashback.Mul(pctDec).Div(hundred).Round(2)
	}

	return Quote{
		RefundPercentage:  pct,
		RefundAmount:      refundAmount,
		CashbackDeduction: deduction,
	}
}

// PartialDeduction scales the cashback deduction by refundAmount/total
// instead of the tier percentage. Used when a caller supplies an explicit
// refund amount smaller than the booking total.
func PartialDeduction(cashbackEarned, refundAmount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return cashbackEarned.Mul(refundAmount).Div(total).Round(2)
}
