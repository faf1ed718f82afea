package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is one user's monetary balance.
//
// Money invariants:
// - No balance update without exactly one entry in each audit trail
//   (coin transaction log + formal transaction ledger).
// - Both logs are append-only (immutable).
// - All money operations execute inside a single DB transaction together
//   with the triggering booking's cashback-status update.
//
// The settlement engine is the only writer for travel cashback flows.
type Wallet struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// Available is the spendable balance.
	Available decimal.Decimal `json:"available" db:"available"`

	// Lifetime statistics, monotone except for clawback adjustments.
	TotalCashback decimal.Decimal `json:"total_cashback" db:"total_cashback"`
	TotalEarned   decimal.Decimal `json:"total_earned" db:"total_earned"`

	IsActive bool `json:"is_active" db:"is_active"`
	IsFrozen bool `json:"is_frozen" db:"is_frozen"`

	// MaxBalance is the balance ceiling; credits that would exceed it fail.
	MaxBalance decimal.Decimal `json:"max_balance" db:"max_balance"`

	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty" db:"last_transaction_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanCredit checks the wallet invariants for an incoming credit.
func (w Wallet) CanCredit(amount decimal.Decimal) error {
	if !w.IsActive {
		return ErrWalletInactive
	}
	if w.IsFrozen {
		return ErrWalletFrozen
	}
	if w.MaxBalance.IsPositive() && w.Available.Add(amount).GreaterThan(w.MaxBalance) {
		return ErrMaxBalanceExceeded
	}
	return nil
}

// CanDebit checks the wallet invariants for an outgoing debit.
func (w Wallet) CanDebit(amount decimal.Decimal) error {
	if !w.IsActive {
		return ErrWalletInactive
	}
	if w.IsFrozen {
		return ErrWalletFrozen
	}
	if w.Available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	return nil
}

// CoinTransaction is an append-only entry in the coin transaction log.
type CoinTransaction struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type CoinTxType `json:"type" db:"type"`

	Amount decimal.Decimal `json:"amount" db:"amount"`
	// Balance is the available balance after this entry was applied.
	Balance decimal.Decimal `json:"balance" db:"balance"`

	Source      string `json:"source" db:"source"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`

	// Metadata is optional JSON for audit/debug.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CoinTxType string

const (
	CoinTxEarned CoinTxType = "earned"
	CoinTxSpent  CoinTxType = "spent"
)

// Transaction is an append-only entry in the formal financial ledger.
// BalanceBefore/BalanceAfter must be consistent with the wallet mutation
// committed in the same transaction.
type Transaction struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type     TxType `json:"type" db:"type"`
	Category string `json:"category" db:"category"` // cashback, refund

	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	Description string `json:"description" db:"description"`

	// SourceType/SourceRef point at the triggering entity (booking id).
	SourceType string `json:"source_type" db:"source_type"`
	SourceRef  string `json:"source_ref" db:"source_ref"`

	Status string `json:"status" db:"status"`

	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`

	IsReversible bool `json:"is_reversible" db:"is_reversible"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
)

const TxStatusCompleted = "completed"

// CashbackRecord tracks a single cashback credit granted to a user.
// "Redeemed" means the user spent it, not that it was received.
type CashbackRecord struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Amount decimal.Decimal `json:"amount" db:"amount"`
	Rate   decimal.Decimal `json:"rate" db:"rate"`

	Source      string `json:"source" db:"source"`
	Status      string `json:"status" db:"status"`
	Description string `json:"description" db:"description"`

	EarnedDate   time.Time `json:"earned_date" db:"earned_date"`
	CreditedDate time.Time `json:"credited_date" db:"credited_date"`
	ExpiryDate   time.Time `json:"expiry_date" db:"expiry_date"`

	OrderAmount decimal.Decimal `json:"order_amount" db:"order_amount"`
	StoreName   string          `json:"store_name" db:"store_name"`

	IsRedeemed bool `json:"is_redeemed" db:"is_redeemed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CashbackExpiryWindow is how long credited cashback stays usable.
const CashbackExpiryWindow = 90 * 24 * time.Hour
