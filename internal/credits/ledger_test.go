package credits

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/models"
	"github.com/searchlens/backend/internal/repository"
)

// fakeAccounts implements Accounts over a single in-memory balance with the
// same decrement-with-floor semantics as the real repository.
type fakeAccounts struct {
	balance  int
	exists   bool
	logs     []models.CreditLog
	logErr   error
	debitErr error
}

func (f *fakeAccounts) GetBalance(context.Context, string) (int, error) {
	if !f.exists {
		return 0, repository.ErrUserNotFound
	}
	return f.balance, nil
}

func (f *fakeAccounts) DebitCredits(_ context.Context, _ string, amount int) (int, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	if !f.exists {
		return 0, repository.ErrUserNotFound
	}
	if f.balance < amount {
		return 0, repository.ErrInsufficientCredits
	}
	f.balance -= amount
	return f.balance, nil
}

func (f *fakeAccounts) GrantCredits(_ context.Context, _ string, amount int) (int, error) {
	if !f.exists {
		return 0, repository.ErrUserNotFound
	}
	f.balance += amount
	return f.balance, nil
}

func (f *fakeAccounts) AppendCreditLog(_ context.Context, entry *models.CreditLog) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, *entry)
	return nil
}

func TestChargeDebitsAndLogs(t *testing.T) {
	accounts := &fakeAccounts{balance: 5, exists: true}
	l := NewLedger(accounts)

	res, err := l.Charge(context.Background(), "u1", 1, "ai_insight")
	require.NoError(t, err)
	assert.Equal(t, 4, res.RemainingBalance)

	require.Len(t, accounts.logs, 1)
	assert.Equal(t, 1, accounts.logs[0].Amount)
	assert.Equal(t, "ai_insight", accounts.logs[0].Purpose)
}

func TestChargeToZeroThenInsufficient(t *testing.T) {
	accounts := &fakeAccounts{balance: 2, exists: true}
	l := NewLedger(accounts)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Charge(ctx, "u1", 1, "ai_insight")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, accounts.balance)

	_, err := l.Charge(ctx, "u1", 1, "ai_insight")
	require.Error(t, err)

	apiErr := apierr.FromError(err)
	assert.Equal(t, apierr.KindInsufficientCredits, apiErr.Kind)
	assert.Equal(t, 0, apiErr.Details["balance"])

	// The balance never goes negative.
	assert.Equal(t, 0, accounts.balance)
}

func TestChargeUnknownUser(t *testing.T) {
	l := NewLedger(&fakeAccounts{})

	_, err := l.Charge(context.Background(), "ghost", 1, "ai_insight")
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindAuth))
}

func TestChargeStandsWhenLogAppendFails(t *testing.T) {
	accounts := &fakeAccounts{balance: 3, exists: true, logErr: errors.New("disk full")}
	l := NewLedger(accounts)

	res, err := l.Charge(context.Background(), "u1", 1, "ai_insight")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RemainingBalance)
	assert.Equal(t, 2, accounts.balance)
	assert.Empty(t, accounts.logs)
}

func TestChargeStorageErrorIsUpstream(t *testing.T) {
	accounts := &fakeAccounts{exists: true, debitErr: errors.New("connection reset")}
	l := NewLedger(accounts)

	_, err := l.Charge(context.Background(), "u1", 1, "ai_insight")
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindUpstream))
}

func TestGrantRecordsNegativeAmount(t *testing.T) {
	accounts := &fakeAccounts{exists: true}
	l := NewLedger(accounts)

	balance, err := l.Grant(context.Background(), "u1", models.DefaultCreditGrant)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCreditGrant, balance)

	require.Len(t, accounts.logs, 1)
	assert.Equal(t, -models.DefaultCreditGrant, accounts.logs[0].Amount)
	assert.Equal(t, "grant", accounts.logs[0].Purpose)
}
