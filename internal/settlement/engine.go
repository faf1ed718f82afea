package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travel-platform/internal/booking"
	"travel-platform/internal/category"
	"travel-platform/internal/refund"
	"travel-platform/internal/wallet"
	"travel-platform/pkg/logger"
)

// Engine orchestrates the cashback lifecycle for travel bookings:
// hold -> credit -> clawback. It is the only writer of cashback state and of
// wallet balances for this vertical.
//
// Concurrency contract: the distributed job lock prevents redundant
// scheduling; the re-read-inside-transaction guard in credit/clawback
// prevents redundant money movement. Both are required: a missed lock
// release or clock skew must not be able to cause a double credit.
type Engine struct {
	store Store
	cache wallet.CacheSyncer

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewEngine(store Store, cache wallet.CacheSyncer) *Engine {
	if cache == nil {
		cache = wallet.NopCacheSyncer{}
	}
	return &Engine{store: store, cache: cache, clock: time.Now}
}

const (
	creditBatchSize   = 200
	creditMaxBatches  = 50
	unpaidBatchLimit  = 100
	unpaidExpiryAge   = 30 * time.Minute
	completeBatchSize = 200

	coinCategory = "travel-experiences"
)

// CreditSummary aggregates one credit-job run.
type CreditSummary struct {
	Credited int `json:"credited"`
	Total    int `json:"total"`
	Failed   int `json:"failed"`
}

// JobResult aggregates one expire/complete job run.
type JobResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// GetBooking returns committed booking state.
func (e *Engine) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	return e.store.GetBooking(ctx, id)
}

// GetWallet returns committed wallet state.
func (e *Engine) GetWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	return e.store.GetWallet(ctx, userID)
}

// ConfirmPayment marks a booking paid and places its cashback on hold.
// Invoked once the payment gateway has verified the payment.
func (e *Engine) ConfirmPayment(ctx context.Context, bookingID, paymentID string) error {
	now := e.clock()
	err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.PaymentStatus == booking.PaymentPaid {
			return nil
		}
		b.PaymentStatus = booking.PaymentPaid
		b.PaymentID = paymentID
		if b.Status == booking.StatusPending {
			b.Status = booking.StatusConfirmed
			confirmedAt := now
			b.ConfirmedAt = &confirmedAt
		}
		b.AppendHistory("payment_confirmed", now, "", "payment verified")
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return err
	}
	return e.HoldCashback(ctx, bookingID)
}

// HoldCashback moves cashback from pending to held without touching the
// wallet. Idempotent: a booking no longer in pending logs and returns nil.
func (e *Engine) HoldCashback(ctx context.Context, bookingID string) error {
	now := e.clock()
	return e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.CashbackStatus != booking.CashbackPending {
			logger.From(ctx).Info("cashback hold skipped",
				"booking_number", b.BookingNumber,
				"cashback_status", string(b.CashbackStatus))
			return nil
		}
		heldAt := now
		b.CashbackStatus = booking.CashbackHeld
		b.CashbackHeldAt = &heldAt
		b.AppendHistory("cashback_held", now, "",
			fmt.Sprintf("%s cashback held", b.Pricing.CashbackEarned))
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		logger.From(ctx).Info("cashback held",
			"booking_number", b.BookingNumber,
			"amount", b.Pricing.CashbackEarned.String())
		return nil
	})
}

// CreditCashbackForBooking makes held cashback spendable.
//
// The booking is re-read with a row lock inside the transaction; finding it
// already credited means another caller won the race and this call is a
// silent no-op. Any other non-held state is an invalid-state failure. The
// cashback record, both audit-log entries, the wallet mutation and the
// booking status all commit as one unit.
func (e *Engine) CreditCashbackForBooking(ctx context.Context, b booking.Booking) error {
	log := logger.From(ctx)

	amount := b.Pricing.CashbackEarned
	if !amount.IsPositive() {
		log.Info("no cashback to credit", "booking_number", b.BookingNumber)
		return nil
	}

	now := e.clock()
	var syncUserID string
	var syncBalance decimal.Decimal

	err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
		fresh, err := tx.BookingForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		if fresh.CashbackStatus == booking.CashbackCredited {
			log.Info("cashback already credited, skipping", "booking_number", fresh.BookingNumber)
			return nil
		}
		if fresh.CashbackStatus != booking.CashbackHeld {
			return fmt.Errorf("%w: cannot credit booking %s in cashback status %q",
				ErrInvalidState, fresh.BookingNumber, fresh.CashbackStatus)
		}

		categoryName := category.DisplayName(fresh.CategorySlug)
		description := fmt.Sprintf("Travel cashback from %s booking", categoryName)

		earnedDate := fresh.CreatedAt
		if fresh.CompletedAt != nil {
			earnedDate = *fresh.CompletedAt
		}
		if err := tx.CreateCashbackRecord(ctx, wallet.CashbackRecord{
			ID:           uuid.NewString(),
			UserID:       fresh.UserID,
			Amount:       amount,
			Rate:         fresh.Pricing.CashbackPercentage,
			Source:       "special_offer",
			Status:       "credited",
			Description:  description,
			EarnedDate:   earnedDate,
			CreditedDate: now,
			ExpiryDate:   now.Add(wallet.CashbackExpiryWindow),
			OrderAmount:  fresh.Pricing.Total,
			StoreName:    categoryName,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		w, err := tx.WalletForUpdate(ctx, fresh.UserID)
		if err != nil {
			return err
		}
		if err := w.CanCredit(amount); err != nil {
			return err
		}

		balanceBefore := w.Available
		w.Available = w.Available.Add(amount)
		w.TotalCashback = w.TotalCashback.Add(amount)
		w.TotalEarned = w.TotalEarned.Add(amount)
		lastTx := now
		w.LastTransactionAt = &lastTx
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]any{
			"booking_id":     fresh.ID,
			"booking_number": fresh.BookingNumber,
			"category_slug":  fresh.CategorySlug,
			"order_amount":   fresh.Pricing.Total,
			"cashback_rate":  fresh.Pricing.CashbackPercentage,
		})
		if err := tx.AppendCoinTransaction(ctx, wallet.CoinTransaction{
			ID:          uuid.NewString(),
			UserID:      fresh.UserID,
			Type:        wallet.CoinTxEarned,
			Amount:      amount,
			Balance:     w.Available,
			Source:      "cashback",
			Description: description,
			Category:    coinCategory,
			Metadata:    string(meta),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if err := tx.AppendTransaction(ctx, wallet.Transaction{
			ID:            uuid.NewString(),
			UserID:        fresh.UserID,
			Type:          wallet.TxCredit,
			Category:      "cashback",
			Amount:        amount,
			Currency:      currencyOf(fresh),
			Description:   fmt.Sprintf("%s (%s)", description, fresh.BookingNumber),
			SourceType:    "cashback",
			SourceRef:     fresh.ID,
			Status:        wallet.TxStatusCompleted,
			BalanceBefore: balanceBefore,
			BalanceAfter:  w.Available,
			IsReversible:  true,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		creditedAt := now
		fresh.CashbackStatus = booking.CashbackCredited
		fresh.CashbackCreditedAt = &creditedAt
		fresh.AppendHistory("cashback_credited", now, "",
			fmt.Sprintf("%s cashback credited to wallet", amount))
		if err := tx.SaveBooking(ctx, fresh); err != nil {
			return err
		}

		syncUserID = fresh.UserID
		syncBalance = w.Available
		log.Info("cashback credited",
			"booking_number", fresh.BookingNumber,
			"user_id", fresh.UserID,
			"amount", amount.String(),
			"balance_before", balanceBefore.String(),
			"balance_after", w.Available.String())
		return nil
	})
	if err != nil {
		return err
	}

	// Read-cache sync is best-effort and must never fail the settlement.
	if syncUserID != "" {
		if err := e.cache.SyncBalance(ctx, syncUserID, syncBalance); err != nil {
			log.Warn("wallet cache sync failed", "user_id", syncUserID, "err", err)
		}
	}
	return nil
}

// HandleRefund claws back cashback on a refunded booking.
//
// partialAmount, when non-nil and smaller than the booking total, scales the
// deduction by partial/total instead of the tier percentage. A wallet that
// cannot cover the deduction fails the whole operation loudly; that money
// needs manual reconciliation and must never be silently written off.
func (e *Engine) HandleRefund(ctx context.Context, bookingID, reason string, partialAmount *decimal.Decimal) (booking.Booking, error) {
	log := logger.From(ctx)

	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}

	if b.CashbackStatus == booking.CashbackClawedBack {
		log.Info("cashback already clawed back", "booking_number", b.BookingNumber)
		return b, nil
	}

	now := e.clock()

	if b.CashbackStatus != booking.CashbackCredited {
		// Nothing was paid out yet: no wallet to reverse, no audit-log
		// entries, just the status flip.
		prior := b.CashbackStatus
		err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
			fresh, err := tx.BookingForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			if fresh.CashbackStatus == booking.CashbackClawedBack {
				return nil
			}
			fresh.CashbackStatus = booking.CashbackClawedBack
			fresh.AppendHistory("cashback_clawed_back", now, "",
				fmt.Sprintf("Cashback cancelled (was %s): %s", prior, reason))
			return tx.SaveBooking(ctx, fresh)
		})
		if err != nil {
			return booking.Booking{}, err
		}
		return e.store.GetBooking(ctx, bookingID)
	}

	deduct := b.Pricing.CashbackEarned
	partial := false
	if partialAmount != nil && partialAmount.IsPositive() && partialAmount.LessThan(b.Pricing.Total) {
		deduct = refund.PartialDeduction(b.Pricing.CashbackEarned, *partialAmount, b.Pricing.Total)
		partial = true
	}

	if !deduct.IsPositive() {
		err := e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
			fresh, err := tx.BookingForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			fresh.CashbackStatus = booking.CashbackClawedBack
			fresh.AppendHistory("cashback_clawed_back", now, "", "no cashback to deduct: "+reason)
			return tx.SaveBooking(ctx, fresh)
		})
		if err != nil {
			return booking.Booking{}, err
		}
		return e.store.GetBooking(ctx, bookingID)
	}

	var syncUserID string
	var syncBalance decimal.Decimal

	err = e.store.Within(ctx, func(ctx context.Context, tx Tx) error {
		fresh, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if fresh.CashbackStatus == booking.CashbackClawedBack {
			return nil
		}

		w, err := tx.WalletForUpdate(ctx, fresh.UserID)
		if err != nil {
			return fmt.Errorf("refund deduction for %s needs manual review: %w", fresh.BookingNumber, err)
		}
		if err := w.CanDebit(deduct); err != nil {
			return fmt.Errorf("refund deduction for %s needs manual review: %w", fresh.BookingNumber, err)
		}

		balanceBefore := w.Available
		w.Available = w.Available.Sub(deduct)
		w.TotalCashback = decimal.Max(decimal.Zero, w.TotalCashback.Sub(deduct))
		lastTx := now
		w.LastTransactionAt = &lastTx
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		suffix := ""
		if partial {
			suffix = " (partial refund)"
		}
		refunded := fresh.Pricing.Total
		if partialAmount != nil {
			refunded = *partialAmount
		}
		meta, _ := json.Marshal(map[string]any{
			"booking_id":        fresh.ID,
			"booking_number":    fresh.BookingNumber,
			"order_amount":      fresh.Pricing.Total,
			"refund_amount":     refunded,
			"deducted_cashback": deduct,
			"refund_reason":     reason,
		})
		if err := tx.AppendCoinTransaction(ctx, wallet.CoinTransaction{
			ID:          uuid.NewString(),
			UserID:      fresh.UserID,
			Type:        wallet.CoinTxSpent,
			Amount:      deduct,
			Balance:     w.Available,
			Source:      "cashback",
			Description: fmt.Sprintf("Travel cashback reversed%s: %s", suffix, reason),
			Category:    coinCategory,
			Metadata:    string(meta),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if err := tx.AppendTransaction(ctx, wallet.Transaction{
			ID:            uuid.NewString(),
			UserID:        fresh.UserID,
			Type:          wallet.TxDebit,
			Category:      "refund",
			Amount:        deduct,
			Currency:      currencyOf(fresh),
			Description:   fmt.Sprintf("Travel cashback reversed%s for %s: %s", suffix, fresh.BookingNumber, reason),
			SourceType:    "refund",
			SourceRef:     fresh.ID,
			Status:        wallet.TxStatusCompleted,
			BalanceBefore: balanceBefore,
			BalanceAfter:  w.Available,
			IsReversible:  false,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		fresh.CashbackStatus = booking.CashbackClawedBack
		fresh.AppendHistory("cashback_clawed_back", now, "",
			fmt.Sprintf("%s cashback deducted from wallet: %s", deduct, reason))
		if err := tx.SaveBooking(ctx, fresh); err != nil {
			return err
		}

		syncUserID = fresh.UserID
		syncBalance = w.Available
		log.Info("cashback clawed back",
			"booking_number", fresh.BookingNumber,
			"user_id", fresh.UserID,
			"deducted", deduct.String())
		return nil
	})
	if err != nil {
		return booking.Booking{}, err
	}

	if syncUserID != "" {
		if err := e.cache.SyncBalance(ctx, syncUserID, syncBalance); err != nil {
			log.Warn("wallet cache sync failed after refund", "user_id", syncUserID, "err", err)
		}
	}
	return e.store.GetBooking(ctx, bookingID)
}

func currencyOf(b booking.Booking) string {
	if b.Pricing.Currency != "" {
		return b.Pricing.Currency
	}
	return "INR"
}
