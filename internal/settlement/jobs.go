package settlement

import (
	"context"
	"fmt"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/pkg/logger"
)

// CreditPendingCashback finds held bookings whose verification window has
// elapsed and credits them in bounded batches.
//
// A booking that fails to credit is recorded in an exclusion set so the
// batch cursor keeps moving past poison records; the job as a whole never
// aborts on per-item failures.
func (e *Engine) CreditPendingCashback(ctx context.Context) (CreditSummary, error) {
	log := logger.From(ctx)

	var summary CreditSummary
	failedIDs := make(map[string]struct{})

	for batchCount := 1; batchCount <= creditMaxBatches; batchCount++ {
		batch, err := e.store.ListHeldReadyForCredit(ctx, e.clock(), failedIDs, creditBatchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		summary.Total += len(batch)
		for _, b := range batch {
			if err := e.CreditCashbackForBooking(ctx, b); err != nil {
				summary.Failed++
				failedIDs[b.ID] = struct{}{}
				log.Error("failed to credit travel cashback",
					"booking_number", b.BookingNumber, "err", err)
				continue
			}
			summary.Credited++
		}

		log.Info("credit batch done",
			"batch", batchCount,
			"attempted", len(batch),
			"credited", summary.Credited,
			"failed", summary.Failed)

		if batchCount == creditMaxBatches {
			log.Warn("credit job hit max batch limit, some bookings may remain unprocessed",
				"max_batches", creditMaxBatches)
		}
	}

	log.Info("credit job complete",
		"credited", summary.Credited,
		"total", summary.Total,
		"failed", summary.Failed)
	return summary, nil
}

// ExpireUnpaidBookings cancels upfront-payment bookings whose payment never
// arrived within the expiry window.
func (e *Engine) ExpireUnpaidBookings(ctx context.Context) (JobResult, error) {
	log := logger.From(ctx)
	now := e.clock()
	cutoff := now.Add(-unpaidExpiryAge)

	stale, err := e.store.ListUnpaidExpired(ctx, cutoff, unpaidBatchLimit)
	if err != nil {
		return JobResult{}, err
	}

	var res JobResult
	for _, b := range stale {
		err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
			fresh, err := tx.BookingForUpdate(ctx, b.ID)
			if err != nil {
				return err
			}
			// Re-check under lock: payment may have landed since the listing.
			if fresh.PaymentStatus != booking.PaymentPending ||
				(fresh.Status != booking.StatusPending && fresh.Status != booking.StatusConfirmed) {
				return nil
			}
			cancelledAt := now
			fresh.Status = booking.StatusCancelled
			fresh.CancelledAt = &cancelledAt
			fresh.CancelledBy = "system"
			fresh.CancellationReason = "Payment timeout - booking expired after 30 minutes"
			fresh.AppendHistory("cancelled", now, "", fresh.CancellationReason)
			return tx.SaveBooking(ctx, fresh)
		})
		if err != nil {
			res.Failed++
			log.Error("failed to expire unpaid booking", "booking_number", b.BookingNumber, "err", err)
			continue
		}
		res.Processed++
	}

	if res.Processed > 0 || res.Failed > 0 {
		log.Info("expire-unpaid job complete", "processed", res.Processed, "failed", res.Failed)
	}
	return res, nil
}

// MarkCompletedBookings marks confirmed, paid bookings with a past booking
// date as completed. Completion starts the verification-window clock the
// credit job consumes.
func (e *Engine) MarkCompletedBookings(ctx context.Context) (JobResult, error) {
	log := logger.From(ctx)
	now := e.clock()

	// End of yesterday: a booking dated today is not completable yet.
	y := now.AddDate(0, 0, -1)
	cutoff := time.Date(y.Year(), y.Month(), y.Day(), 23, 59, 59, int(999*time.Millisecond), y.Location())

	due, err := e.store.ListCompletablePast(ctx, cutoff, completeBatchSize)
	if err != nil {
		return JobResult{}, err
	}

	var res JobResult
	for _, b := range due {
		err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
			fresh, err := tx.BookingForUpdate(ctx, b.ID)
			if err != nil {
				return err
			}
			if fresh.Status != booking.StatusConfirmed || fresh.CompletedAt != nil {
				return nil
			}
			completedAt := now
			fresh.Status = booking.StatusCompleted
			fresh.CompletedAt = &completedAt
			fresh.AppendHistory("completed", now, "", "marked completed after travel date")
			return tx.SaveBooking(ctx, fresh)
		})
		if err != nil {
			res.Failed++
			log.Error("failed to mark booking completed", "booking_number", b.BookingNumber, "err", err)
			continue
		}
		res.Processed++
	}

	if res.Processed > 0 || res.Failed > 0 {
		log.Info("mark-completed job complete", "processed", res.Processed, "failed", res.Failed)
	}
	return res, nil
}

// ForceAction is an operator override on one booking's cashback state.
type ForceAction string

const (
	ForceCredit   ForceAction = "credit"
	ForceClawback ForceAction = "clawback"
)

// ForceSettle applies an operator override. Credit fails if the booking is
// already credited; clawback fails if already clawed back. Callers are
// responsible for recording the override in the operator audit log.
func (e *Engine) ForceSettle(ctx context.Context, bookingID string, action ForceAction, actorID string) (booking.Booking, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}

	switch action {
	case ForceCredit:
		switch b.CashbackStatus {
		case booking.CashbackCredited:
			return booking.Booking{}, fmt.Errorf("%w: cashback already credited for %s", ErrInvalidState, b.BookingNumber)
		case booking.CashbackClawedBack:
			return booking.Booking{}, fmt.Errorf("%w: cashback already clawed back for %s", ErrInvalidState, b.BookingNumber)
		case booking.CashbackPending:
			if err := e.HoldCashback(ctx, bookingID); err != nil {
				return booking.Booking{}, err
			}
			b, err = e.store.GetBooking(ctx, bookingID)
			if err != nil {
				return booking.Booking{}, err
			}
		}
		if err := e.CreditCashbackForBooking(ctx, b); err != nil {
			return booking.Booking{}, err
		}
	case ForceClawback:
		if b.CashbackStatus == booking.CashbackClawedBack {
			return booking.Booking{}, fmt.Errorf("%w: cashback already clawed back for %s", ErrInvalidState, b.BookingNumber)
		}
		reason := "forced clawback by operator"
		if actorID != "" {
			reason = fmt.Sprintf("forced clawback by operator %s", actorID)
		}
		if _, err := e.HandleRefund(ctx, bookingID, reason, nil); err != nil {
			return booking.Booking{}, err
		}
	default:
		return booking.Booking{}, fmt.Errorf("%w: unknown settlement action %q", ErrInvalidState, action)
	}

	return e.store.GetBooking(ctx, bookingID)
}

// UpdateReferences corrects free-form booking metadata (PNR, external
// reference). It has no cashback side effects.
func (e *Engine) UpdateReferences(ctx context.Context, bookingID, pnr, externalRef, note, actorID string) (booking.Booking, error) {
	now := e.clock()
	err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if pnr != "" {
			b.PNR = pnr
		}
		if externalRef != "" {
			b.ExternalRef = externalRef
		}
		msg := "references corrected"
		if note != "" {
			msg = note
		}
		b.AppendHistory("references_updated", now, actorID, msg)
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return booking.Booking{}, err
	}
	return e.store.GetBooking(ctx, bookingID)
}
