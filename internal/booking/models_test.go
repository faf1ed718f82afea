package booking

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComputeCashbackEarned(t *testing.T) {
	total := decimal.NewFromInt(5000)
	pct := decimal.NewFromInt(15)
	got := ComputeCashbackEarned(total, pct)
	if !got.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected 750, got %s", got)
	}

	// fractional result rounds to 2 places
	got = ComputeCashbackEarned(decimal.NewFromInt(999), decimal.NewFromFloat(7.5))
	if !got.Equal(decimal.NewFromFloat(74.93)) {
		t.Fatalf("expected 74.93, got %s", got)
	}
}

func TestDeparture(t *testing.T) {
	b := Booking{
		BookingDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		TimeSlot:    TimeSlot{Start: "09:30", End: "10:30"},
	}
	dep := b.Departure()
	if dep.Hour() != 9 || dep.Minute() != 30 {
		t.Fatalf("expected 09:30, got %02d:%02d", dep.Hour(), dep.Minute())
	}
	if dep.Year() != 2026 || dep.Month() != 3 || dep.Day() != 10 {
		t.Fatalf("unexpected date: %v", dep)
	}
}

func TestDepartureMalformedSlotDefaultsToMidnight(t *testing.T) {
	b := Booking{
		BookingDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		TimeSlot:    TimeSlot{Start: "bogus"},
	}
	dep := b.Departure()
	if dep.Hour() != 0 || dep.Minute() != 0 {
		t.Fatalf("expected midnight fallback, got %v", dep)
	}
}

func TestDepartureOutOfRangeSlotDefaultsToMidnight(t *testing.T) {
	for _, start := range []string{"25:00", "12:71", "12:3x", ":30", "12:"} {
		b := Booking{
			BookingDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
			TimeSlot:    TimeSlot{Start: start},
		}
		dep := b.Departure()
		if dep.Hour() != 0 || dep.Minute() != 0 {
			t.Fatalf("start %q: expected midnight fallback, got %v", start, dep)
		}
	}
}

func TestAppendHistoryIsAppendOnly(t *testing.T) {
	b := Booking{}
	now := time.Now()
	b.AppendHistory("confirmed", now, "u1", "")
	b.AppendHistory("cashback_held", now, "", "held")
	if len(b.StatusHistory) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.StatusHistory))
	}
	if b.StatusHistory[0].Status != "confirmed" || b.StatusHistory[1].Status != "cashback_held" {
		t.Fatalf("history order broken: %+v", b.StatusHistory)
	}
}

func TestNewBookingNumber(t *testing.T) {
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	n := NewBookingNumber("flights", at)
	if !strings.HasPrefix(n, "FLT-20260901-") {
		t.Fatalf("unexpected flight number: %s", n)
	}
	if len(n) != len("FLT-20260901-")+5 {
		t.Fatalf("unexpected length: %s", n)
	}

	n = NewBookingNumber("spa", at)
	if !strings.HasPrefix(n, "TRV-") {
		t.Fatalf("unknown slug should use TRV prefix, got %s", n)
	}

	// suffixes should differ between calls
	if NewBookingNumber("bus", at) == NewBookingNumber("bus", at) {
		t.Fatalf("expected random suffixes to differ")
	}
}
