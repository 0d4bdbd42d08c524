// Package credits implements the credit-metering ledger gating paid
// operations.
package credits

import (
	"context"
	"errors"
	"log"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/models"
	"github.com/searchlens/backend/internal/repository"
)

// Accounts is the persistence dependency of the ledger. Implemented by
// repository.UserRepository. DebitCredits must be a single atomic
// decrement-with-floor so two racing charges cannot both take the last credit.
type Accounts interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)
	GrantCredits(ctx context.Context, userID string, amount int) (int, error)
	AppendCreditLog(ctx context.Context, entry *models.CreditLog) error
}

// ChargeResult reports a successful charge.
type ChargeResult struct {
	RemainingBalance int `json:"remaining_balance"`
}

// Ledger debits per-user balances and records an audit row per charge.
type Ledger struct {
	accounts Accounts
}

// NewLedger creates a credit ledger.
func NewLedger(accounts Accounts) *Ledger {
	return &Ledger{accounts: accounts}
}

// Charge atomically debits amount from the user's balance and appends a
// ledger entry. The balance is authoritative: if the audit write fails after
// the debit succeeded, the charge stands and the gap is logged loudly.
func (l *Ledger) Charge(ctx context.Context, userID string, amount int, purpose string) (*ChargeResult, error) {
	remaining, err := l.accounts.DebitCredits(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			balance, balErr := l.accounts.GetBalance(ctx, userID)
			if balErr != nil {
				balance = 0
			}
			return nil, apierr.InsufficientCredits(balance)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apierr.Auth("unknown_user", "User account not found.")
		}
		return nil, apierr.Upstream("storage_error", "Failed to charge credits.")
	}

	entry := &models.CreditLog{
		UserID:  userID,
		Amount:  amount,
		Purpose: purpose,
	}
	if err := l.accounts.AppendCreditLog(ctx, entry); err != nil {
		// The audit log is diagnostic; the debited balance wins. This should
		// page someone, not fail the request.
		log.Printf("[credits] ALERT: balance debited but ledger append failed for user %s (amount=%d purpose=%s): %v",
			userID, amount, purpose, err)
	}

	return &ChargeResult{RemainingBalance: remaining}, nil
}

// Grant adds credits, recording a negative-amount ledger row so the audit
// trail reconstructs the balance. Used at account creation.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int) (int, error) {
	balance, err := l.accounts.GrantCredits(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	entry := &models.CreditLog{
		UserID:  userID,
		Amount:  -amount,
		Purpose: "grant",
	}
	if err := l.accounts.AppendCreditLog(ctx, entry); err != nil {
		log.Printf("[credits] ALERT: credits granted but ledger append failed for user %s (amount=%d): %v",
			userID, amount, err)
	}

	return balance, nil
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.accounts.GetBalance(ctx, userID)
}
