package wallet

import "errors"

// Financial-consistency violations. These always propagate as hard failures
// out of the transaction boundary; callers must never swallow them.
var (
	ErrWalletNotFound      = errors.New("wallet: not found")
	ErrWalletInactive      = errors.New("wallet: not active")
	ErrWalletFrozen        = errors.New("wallet: frozen")
	ErrMaxBalanceExceeded  = errors.New("wallet: maximum balance would be exceeded")
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
)
