package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"travel-platform/internal/booking"
	"travel-platform/internal/category"
)

func TestCreditPendingCashbackJob(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	// three matured holds, one still inside its verification window
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("b%d", i)
		uid := fmt.Sprintf("u%d", i)
		store.PutBooking(heldFlightBooking(id, uid))
		store.PutWallet(activeTestWallet(uid, 0))
	}
	young := heldFlightBooking("b4", "u4")
	recent := testNow.Add(-24 * time.Hour) // verificationDays=3, not matured
	young.CompletedAt = &recent
	store.PutBooking(young)
	store.PutWallet(activeTestWallet("u4", 0))

	summary, err := e.CreditPendingCashback(ctx)
	if err != nil {
		t.Fatalf("job failed: %v", err)
	}
	if summary.Credited != 3 || summary.Failed != 0 || summary.Total != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	for i := 1; i <= 3; i++ {
		b, _ := store.GetBooking(ctx, fmt.Sprintf("b%d", i))
		if b.CashbackStatus != booking.CashbackCredited {
			t.Fatalf("booking b%d not credited: %s", i, b.CashbackStatus)
		}
	}
	b4, _ := store.GetBooking(ctx, "b4")
	if b4.CashbackStatus != booking.CashbackHeld {
		t.Fatalf("unmatured booking must stay held, got %s", b4.CashbackStatus)
	}
}

func TestCreditPendingCashbackJobExcludesPoisonRecords(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	store.PutBooking(heldFlightBooking("good", "u1"))
	store.PutWallet(activeTestWallet("u1", 0))

	// no wallet for this user: credit fails every time
	store.PutBooking(heldFlightBooking("poison", "u-nowallet"))

	summary, err := e.CreditPendingCashback(ctx)
	if err != nil {
		t.Fatalf("job must not abort on per-item failures: %v", err)
	}
	if summary.Credited != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// the poison booking stays held and does not wedge a rerun
	summary, err = e.CreditPendingCashback(ctx)
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if summary.Credited != 0 || summary.Failed != 1 {
		t.Fatalf("rerun summary: %+v", summary)
	}
}

func TestCreditJobRunTwiceCreditsOnce(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	store.PutBooking(heldFlightBooking("b1", "u1"))
	store.PutWallet(activeTestWallet("u1", 0))

	if _, err := e.CreditPendingCashback(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := e.CreditPendingCashback(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Credited != 0 || second.Total != 0 {
		t.Fatalf("second run must find nothing to credit: %+v", second)
	}

	w, _ := store.GetWallet(ctx, "u1")
	if !w.Available.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected a single credit of 750, got %s", w.Available)
	}
	if n := len(store.CoinTransactions()); n != 1 {
		t.Fatalf("expected 1 coin entry, got %d", n)
	}
}

func TestExpireUnpaidBookings(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	stale := heldFlightBooking("stale", "u1")
	stale.Status = booking.StatusPending
	stale.PaymentStatus = booking.PaymentPending
	stale.RequiresPaymentUpfront = true
	stale.CashbackStatus = booking.CashbackPending
	stale.CompletedAt = nil
	stale.CreatedAt = testNow.Add(-45 * time.Minute)
	store.PutBooking(stale)

	fresh := stale
	fresh.ID = "fresh"
	fresh.CreatedAt = testNow.Add(-10 * time.Minute)
	store.PutBooking(fresh)

	paid := stale
	paid.ID = "paid"
	paid.PaymentStatus = booking.PaymentPaid
	paid.CreatedAt = testNow.Add(-2 * time.Hour)
	store.PutBooking(paid)

	res, err := e.ExpireUnpaidBookings(ctx)
	if err != nil {
		t.Fatalf("job failed: %v", err)
	}
	if res.Processed != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, _ := store.GetBooking(ctx, "stale")
	if got.Status != booking.StatusCancelled {
		t.Fatalf("stale booking not cancelled: %s", got.Status)
	}
	if got.CancelledBy != "system" {
		t.Fatalf("cancelledBy = %q, want system", got.CancelledBy)
	}
	if got.CancellationReason != "Payment timeout - booking expired after 30 minutes" {
		t.Fatalf("unexpected reason: %q", got.CancellationReason)
	}

	if got, _ := store.GetBooking(ctx, "fresh"); got.Status != booking.StatusPending {
		t.Fatalf("fresh booking must survive, got %s", got.Status)
	}
	if got, _ := store.GetBooking(ctx, "paid"); got.Status != booking.StatusPending {
		t.Fatalf("paid booking must survive, got %s", got.Status)
	}
}

func TestMarkCompletedBookings(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	past := heldFlightBooking("past", "u1")
	past.Status = booking.StatusConfirmed
	past.PaymentStatus = booking.PaymentPaid
	past.CashbackStatus = booking.CashbackHeld
	past.CompletedAt = nil
	past.BookingDate = testNow.AddDate(0, 0, -2)
	store.PutBooking(past)

	today := past
	today.ID = "today"
	today.BookingDate = testNow
	store.PutBooking(today)

	res, err := e.MarkCompletedBookings(ctx)
	if err != nil {
		t.Fatalf("job failed: %v", err)
	}
	if res.Processed != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, _ := store.GetBooking(ctx, "past")
	if got.Status != booking.StatusCompleted {
		t.Fatalf("past booking not completed: %s", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(testNow) {
		t.Fatalf("completedAt not stamped: %v", got.CompletedAt)
	}

	if got, _ := store.GetBooking(ctx, "today"); got.Status != booking.StatusConfirmed {
		t.Fatalf("same-day booking must not complete, got %s", got.Status)
	}
}

func TestMarkCompletedFeedsCreditJob(t *testing.T) {
	// completion stamps the clock the credit job reads: a booking completed
	// just now must wait out its verification window.
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	b := heldFlightBooking("b1", "u1")
	b.Status = booking.StatusConfirmed
	b.CompletedAt = nil
	b.BookingDate = testNow.AddDate(0, 0, -2)
	store.PutBooking(b)
	store.PutWallet(activeTestWallet("u1", 0))

	if _, err := e.MarkCompletedBookings(ctx); err != nil {
		t.Fatalf("complete job failed: %v", err)
	}
	summary, err := e.CreditPendingCashback(ctx)
	if err != nil {
		t.Fatalf("credit job failed: %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("freshly completed booking must not be credit-eligible yet: %+v", summary)
	}
}

func TestForceSettleCredit(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	// pending booking: force-credit holds first, then credits
	b := heldFlightBooking("b1", "u1")
	b.CashbackStatus = booking.CashbackPending
	b.CashbackHeldAt = nil
	store.PutBooking(b)
	store.PutWallet(activeTestWallet("u1", 0))

	got, err := e.ForceSettle(ctx, "b1", ForceCredit, "admin-1")
	if err != nil {
		t.Fatalf("force credit failed: %v", err)
	}
	if got.CashbackStatus != booking.CashbackCredited {
		t.Fatalf("expected credited, got %s", got.CashbackStatus)
	}
	w, _ := store.GetWallet(ctx, "u1")
	if !w.Available.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected 750, got %s", w.Available)
	}

	// a second force credit is an invalid-state error, not a double credit
	if _, err := e.ForceSettle(ctx, "b1", ForceCredit, "admin-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestForceSettleClawback(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	store.PutBooking(heldFlightBooking("b1", "u1"))
	store.PutWallet(activeTestWallet("u1", 0))
	b, _ := store.GetBooking(ctx, "b1")
	if err := e.CreditCashbackForBooking(ctx, b); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	got, err := e.ForceSettle(ctx, "b1", ForceClawback, "admin-2")
	if err != nil {
		t.Fatalf("force clawback failed: %v", err)
	}
	if got.CashbackStatus != booking.CashbackClawedBack {
		t.Fatalf("expected clawed_back, got %s", got.CashbackStatus)
	}

	if _, err := e.ForceSettle(ctx, "b1", ForceClawback, "admin-2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("repeat clawback must fail, got %v", err)
	}
}

func TestForceSettleUnknownAction(t *testing.T) {
	store := NewMemoryStore()
	store.PutBooking(heldFlightBooking("b1", "u1"))
	e := newTestEngine(store)

	if _, err := e.ForceSettle(context.Background(), "b1", ForceAction("explode"), "admin"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestUpdateReferences(t *testing.T) {
	store := NewMemoryStore()
	store.PutBooking(heldFlightBooking("b1", "u1"))
	e := newTestEngine(store)
	ctx := context.Background()

	got, err := e.UpdateReferences(ctx, "b1", "ABC123", "GDS-77", "airline reissued PNR", "admin-1")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.PNR != "ABC123" || got.ExternalRef != "GDS-77" {
		t.Fatalf("references not applied: pnr=%q ref=%q", got.PNR, got.ExternalRef)
	}
	if got.CashbackStatus != booking.CashbackHeld {
		t.Fatalf("reference correction must not touch cashback state, got %s", got.CashbackStatus)
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.Note != "airline reissued PNR" || last.ActorID != "admin-1" {
		t.Fatalf("history entry wrong: %+v", last)
	}
}

func TestVerificationWindowPerCategory(t *testing.T) {
	// a cab booking matures after 1 day; a package takes 7
	store := NewMemoryStore()
	e := newTestEngine(store)
	ctx := context.Background()

	cab := heldFlightBooking("cab", "u1")
	cab.CategorySlug = category.SlugCab
	cab.VerificationDays = category.VerificationDays(category.SlugCab)
	done := testNow.Add(-36 * time.Hour)
	cab.CompletedAt = &done
	store.PutBooking(cab)
	store.PutWallet(activeTestWallet("u1", 0))

	pkg := heldFlightBooking("pkg", "u2")
	pkg.CategorySlug = category.SlugPackages
	pkg.VerificationDays = category.VerificationDays(category.SlugPackages)
	pkgDone := testNow.Add(-5 * 24 * time.Hour)
	pkg.CompletedAt = &pkgDone
	store.PutBooking(pkg)
	store.PutWallet(activeTestWallet("u2", 0))

	summary, err := e.CreditPendingCashback(ctx)
	if err != nil {
		t.Fatalf("job failed: %v", err)
	}
	if summary.Credited != 1 {
		t.Fatalf("only the cab booking should mature: %+v", summary)
	}
	if b, _ := store.GetBooking(ctx, "cab"); b.CashbackStatus != booking.CashbackCredited {
		t.Fatalf("cab not credited: %s", b.CashbackStatus)
	}
	if b, _ := store.GetBooking(ctx, "pkg"); b.CashbackStatus != booking.CashbackHeld {
		t.Fatalf("package must stay held: %s", b.CashbackStatus)
	}
}
