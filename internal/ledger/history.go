package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells which side of an entry the viewing account is on.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// FallbackCounterparty is shown when the other party has no resolvable name.
const FallbackCounterparty = "User"

const (
	// DefaultHistoryLimit applies when the caller does not bound the page.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single history page.
	MaxHistoryLimit = 200
)

// Transaction is one row of an account's transaction view. It is a
// projection of a TransferEntry, never stored.
type Transaction struct {
	ID           uuid.UUID
	Direction    Direction
	Amount       decimal.Decimal
	Date         time.Time
	Counterparty string
	Kind         Kind
	Status       Status
	Message      string
}

// Directory resolves account display names. The user directory is an
// external collaborator; the ledger only reads names from it.
type Directory interface {
	DisplayName(ctx context.Context, accountID uuid.UUID) (string, error)
}

// History projects raw transfer entries into per-account transaction views.
type History struct {
	store     Store
	directory Directory
}

// NewHistory constructs a history projector.
func NewHistory(store Store, directory Directory) *History {
	return &History{store: store, directory: directory}
}

// List returns the account's transactions newest first, paginated by
// limit/offset. Pages are not stable cursors: entries inserted ahead of an
// offset shift later pages, which callers must tolerate.
func (h *History) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.store.Entries(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(entries))
	out := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		tx := Transaction{
			ID:      e.ID,
			Amount:  e.Amount,
			Date:    e.CreatedAt,
			Kind:    e.Kind,
			Status:  e.Status,
			Message: e.Message,
		}

		var counterparty *uuid.UUID
		if e.Sender != nil && *e.Sender == accountID {
			tx.Direction = DirectionOut
			counterparty = e.Receiver
		} else {
			tx.Direction = DirectionIn
			counterparty = e.Sender
		}
		tx.Counterparty = h.resolveName(ctx, names, counterparty)

		out = append(out, tx)
	}
	return out, nil
}

func (h *History) resolveName(ctx context.Context, cache map[uuid.UUID]string, accountID *uuid.UUID) string {
	if accountID == nil || h.directory == nil {
		return FallbackCounterparty
	}
	if name, ok := cache[*accountID]; ok {
		return name
	}
	name, err := h.directory.DisplayName(ctx, *accountID)
	if err != nil || name == "" {
		name = FallbackCounterparty
	}
	cache[*accountID] = name
	return name
}
