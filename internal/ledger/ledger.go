package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies a transfer entry.
type Kind string

const (
	KindTopUp             Kind = "topup"
	KindTransfer          Kind = "transfer"
	KindSpray             Kind = "spray"
	KindRedemption        Kind = "redemption"
	KindPurchase          Kind = "purchase"
	KindRefund            Kind = "refund"
	KindGatewaySettlement Kind = "gateway_settlement"
	KindGatewayQR         Kind = "gateway_qr"
)

// Status tracks the lifecycle of an entry. A completed entry is immutable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TransferEntry is a single ledger row. Exactly one of Sender/Receiver is nil
// for gateway-facing kinds; both are set for peer kinds.
type TransferEntry struct {
	ID        uuid.UUID
	Sender    *uuid.UUID
	Receiver  *uuid.UUID
	Amount    decimal.Decimal
	Kind      Kind
	Status    Status
	Reference string
	Message   string
	CreatedAt time.Time
}

// Posting describes a requested money movement before it becomes an entry.
type Posting struct {
	Kind     Kind
	Sender   *uuid.UUID
	Receiver *uuid.UUID
	Amount   decimal.Decimal
	Message  string

	// Reference is the caller-supplied idempotency key. Empty means the
	// posting is not replay-protected at the store level.
	Reference string
}

// External reports whether the kind is funded outside the ledger. Only a
// top-up skips the sender balance check, the source of funds being a prior
// payment capture at the gateway. A settlement debits a real balance and is
// checked like any other debit.
func (k Kind) External() bool {
	return k == KindTopUp
}

// Valid reports whether the kind is one the ledger accepts.
func (k Kind) Valid() bool {
	switch k {
	case KindTopUp, KindTransfer, KindSpray, KindRedemption,
		KindPurchase, KindRefund, KindGatewaySettlement, KindGatewayQR:
		return true
	}
	return false
}

// Store is the contract implemented by ledger backends. Apply must make the
// posting sequence (insert pending entry, move balances, mark completed)
// atomic to any concurrent reader, serializing per account by locking the
// involved accounts in lexicographic id order.
//
// Error contract: apperrors.ErrAccountNotFound,
// apperrors.ErrInsufficientBalance, apperrors.ErrDuplicateReference (returned
// alongside the prior completed entry), and apperrors.ErrConcurrencyConflict when lock
// contention could not be resolved by the backend itself.
type Store interface {
	// EnsureAccount guarantees a zero-balance ledger account exists.
	EnsureAccount(ctx context.Context, accountID uuid.UUID) error

	// Apply executes a validated posting and returns the completed entry.
	Apply(ctx context.Context, p Posting) (TransferEntry, error)

	// Balance reads the maintained running total for the account.
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)

	// AuthoritativeBalance folds completed entries for the account. Slow
	// path; must always agree with Balance.
	AuthoritativeBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)

	// Entries lists entries touching the account, newest first.
	Entries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]TransferEntry, error)
}
