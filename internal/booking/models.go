package booking

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"travel-platform/internal/category"
)

// Booking is a single travel reservation together with its cashback
// sub-state.
//
// Two independent lifecycles live on this record:
// - Status: the reservation itself (pending -> confirmed/assigned ->
//   in_progress -> completed | cancelled | no_show).
// - CashbackStatus: the money owed on it (pending -> held -> credited ->
//   clawed_back). The settlement engine is the only writer of the cashback
//   fields after creation.
//
// Money invariant: Pricing.CashbackEarned is fixed at creation time and is
// never recalculated once the cashback has been held.
type Booking struct {
	ID            string `json:"id" db:"id"`
	BookingNumber string `json:"booking_number" db:"booking_number"`
	UserID        string `json:"user_id" db:"user_id"`
	ServiceID     string `json:"service_id" db:"service_id"`
	CategorySlug  string `json:"category_slug" db:"category_slug"`
	StoreID       string `json:"store_id,omitempty" db:"store_id"`

	// Schedule. TimeSlot times are "HH:MM" strings; the departure instant is
	// BookingDate's day merged with TimeSlot.Start in server-local time.
	BookingDate     time.Time `json:"booking_date" db:"booking_date"`
	TimeSlot        TimeSlot  `json:"time_slot" db:"time_slot"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`

	Pricing Pricing `json:"pricing" db:"pricing"`

	PaymentStatus          PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentID              string        `json:"payment_id,omitempty" db:"payment_id"`
	RequiresPaymentUpfront bool          `json:"requires_payment_upfront" db:"requires_payment_upfront"`

	Status        Status               `json:"status" db:"status"`
	StatusHistory []StatusHistoryEntry `json:"status_history" db:"status_history"`

	// Cashback sub-state.
	CashbackStatus     CashbackStatus `json:"cashback_status" db:"cashback_status"`
	CashbackHeldAt     *time.Time     `json:"cashback_held_at,omitempty" db:"cashback_held_at"`
	CashbackCreditedAt *time.Time     `json:"cashback_credited_at,omitempty" db:"cashback_credited_at"`

	// VerificationDays is the delay after completion before cashback may be
	// credited. Snapshot of the category table at creation time.
	VerificationDays int `json:"verification_days" db:"verification_days"`

	// RefundPolicy, when non-empty, overrides the category tier table.
	RefundPolicy []category.Tier `json:"refund_policy,omitempty" db:"refund_policy"`

	// External references (free-form, operator-correctable).
	PNR         string `json:"pnr,omitempty" db:"pnr"`
	ExternalRef string `json:"external_ref,omitempty" db:"external_ref"`

	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason string     `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledBy        string     `json:"cancelled_by,omitempty" db:"cancelled_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TimeSlot struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "10:00"
}

// Pricing carries the monetary fields of a booking. Total may diverge from
// BasePrice via a validated user-supplied override; it must be positive.
type Pricing struct {
	BasePrice          decimal.Decimal `json:"base_price"`
	Total              decimal.Decimal `json:"total"`
	CashbackPercentage decimal.Decimal `json:"cashback_percentage"`
	CashbackEarned     decimal.Decimal `json:"cashback_earned"`
	Currency           string          `json:"currency"`
}

// StatusHistoryEntry is an append-only audit record on the booking itself.
// Entries are never rewritten.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	Note      string    `json:"note,omitempty"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// CashbackStatus transitions are monotonic:
// pending -> held -> credited -> clawed_back, or pending/held -> clawed_back
// directly. clawed_back is terminal; credited can only ever be reached once.
type CashbackStatus string

const (
	CashbackPending    CashbackStatus = "pending"
	CashbackHeld       CashbackStatus = "held"
	CashbackCredited   CashbackStatus = "credited"
	CashbackClawedBack CashbackStatus = "clawed_back"
)

// AppendHistory records a status-history note. History is append-only.
func (b *Booking) AppendHistory(status string, at time.Time, actorID, note string) {
	b.StatusHistory = append(b.StatusHistory, StatusHistoryEntry{
		Status:    status,
		Timestamp: at,
		ActorID:   actorID,
		Note:      note,
	})
}

// ComputeCashbackEarned derives the fixed cashback amount from the total and
// percentage, rounded to 2 decimal places.
func ComputeCashbackEarned(total, percentage decimal.Decimal) decimal.Decimal {
	return total.Mul(percentage).Div(decimal.NewFromInt(100)).Round(2)
}

// Departure merges the booking date with the time-slot start into the
// departure instant. The time-of-day is interpreted in the booking date's
// location; no timezone normalization is applied.
func (b Booking) Departure() time.Time {
	h, m := parseHHMM(b.TimeSlot.Start)
	d := b.BookingDate
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, d.Location())
}

// parseHHMM reads a "15:04" time-slot start. Anything malformed or out of
// range falls back to midnight, matching the slot-less case.
func parseHHMM(s string) (hour, minute int) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0
	}
	return h, m
}
