package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// BookingsSummaryRequest requests aggregated booking metrics.

type BookingsSummaryRequest struct {
	Range        TimeRange `json:"range"`
	CategorySlug string    `json:"category_slug,omitempty"`
}

type BookingsSummary struct {
	CategorySlug string `json:"category_slug,omitempty"`

	TotalBookings     int `json:"total_bookings"`
	PendingBookings   int `json:"pending_bookings"`
	ConfirmedBookings int `json:"confirmed_bookings"`
	CompletedBookings int `json:"completed_bookings"`
	CancelledBookings int `json:"cancelled_bookings"`

	// PaidRevenue sums the totals of paid bookings only.
	PaidRevenue decimal.Decimal `json:"paid_revenue"`
	Currency    string          `json:"currency"`
}

// CashbackSummaryRequest requests cashback-lifecycle rollups.
// Amounts are derived from booking cashback state, not from the wallet,
// so pending and held exposure is visible before any money moves.

type CashbackSummaryRequest struct {
	Range        TimeRange `json:"range"`
	CategorySlug string    `json:"category_slug,omitempty"`
}

type CashbackSummary struct {
	CategorySlug string `json:"category_slug,omitempty"`

	PendingCount   int `json:"pending_count"`
	HeldCount      int `json:"held_count"`
	CreditedCount  int `json:"credited_count"`
	ClawedBackCount int `json:"clawed_back_count"`

	PendingAmount   decimal.Decimal `json:"pending_amount"`
	HeldAmount      decimal.Decimal `json:"held_amount"`
	CreditedAmount  decimal.Decimal `json:"credited_amount"`
	ClawedBackAmount decimal.Decimal `json:"clawed_back_amount"`
}

// WalletActivityRequest requests aggregated wallet-ledger metrics.
// Derived from the immutable transaction log.

type WalletActivityRequest struct {
	Range  TimeRange `json:"range"`
	UserID string    `json:"user_id,omitempty"`
}

type WalletActivity struct {
	UserID string `json:"user_id,omitempty"`

	CreditCount int `json:"credit_count"`
	DebitCount  int `json:"debit_count"`

	TotalCredited decimal.Decimal `json:"total_credited"`
	TotalDebited  decimal.Decimal `json:"total_debited"`
	NetDelta      decimal.Decimal `json:"net_delta"`
}
