package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seed is a test helper that opens an account and credits it through a
// regular top-up posting, so seeded balances stay consistent with the entry
// fold.
func Seed(ctx context.Context, store Store, accountID uuid.UUID, amount decimal.Decimal) error {
	if err := store.EnsureAccount(ctx, accountID); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}
	_, err := store.Apply(ctx, Posting{
		Kind:      KindTopUp,
		Receiver:  &accountID,
		Amount:    amount,
		Reference: fmt.Sprintf("seed-%s", uuid.NewString()),
	})
	return err
}
