package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceService exposes the current balance for an account. Read-only; the
// cached running total is maintained by Store.Apply inside the same
// transactional scope as every entry write.
type BalanceService struct {
	store Store
}

// NewBalanceService constructs a balance service over the given store.
func NewBalanceService(store Store) *BalanceService {
	return &BalanceService{store: store}
}

// Balance returns the maintained running total for the account.
func (s *BalanceService) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return s.store.Balance(ctx, accountID)
}

// Authoritative folds all completed entries for the account. Slow path, used
// for reconciliation; always agrees with Balance.
func (s *BalanceService) Authoritative(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return s.store.AuthoritativeBalance(ctx, accountID)
}
