package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/apperrors"
	"github.com/CodeXPrim8/BU/internal/eventsink"
)

const (
	conflictRetries = 3
	conflictBackoff = 25 * time.Millisecond
)

// Engine validates and executes postings against the ledger store. It owns
// the retry budget for lock contention and emits domain events for every
// resolved entry; the store owns atomicity.
type Engine struct {
	store  Store
	sink   eventsink.Sink
	logger *slog.Logger
}

// NewEngine constructs a transfer engine.
func NewEngine(store Store, sink eventsink.Sink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = eventsink.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, sink: sink, logger: logger}
}

// Execute runs a posting to its completed or failed entry. Validation errors
// return before anything is written. A replayed reference returns the prior
// completed entry as a success. ErrConcurrencyConflict is retried internally
// with backoff before being surfaced.
func (e *Engine) Execute(ctx context.Context, p Posting) (TransferEntry, error) {
	if err := validatePosting(p); err != nil {
		return TransferEntry{}, err
	}

	var (
		entry TransferEntry
		err   error
	)
	backoff := conflictBackoff
	for attempt := 0; ; attempt++ {
		entry, err = e.store.Apply(ctx, p)
		if err == nil || !errors.Is(err, apperrors.ErrConcurrencyConflict) || attempt >= conflictRetries {
			break
		}
		e.logger.Warn("posting retry after lock contention",
			"kind", p.Kind, "attempt", attempt+1, "backoff", backoff)
		select {
		case <-ctx.Done():
			return TransferEntry{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	switch {
	case err == nil:
		e.emit(ctx, eventsink.TypeEntryCompleted, entry)
		return entry, nil
	case errors.Is(err, apperrors.ErrDuplicateReference) && entry.Status == StatusCompleted:
		// Same confirmation delivered twice: answer from the first result
		// without moving money again. Only a completed prior entry counts;
		// anything else did not credit and must not surface as a success.
		e.emit(ctx, eventsink.TypeTopUpReplayed, entry)
		return entry, nil
	default:
		if entry.Status == StatusFailed && !errors.Is(err, apperrors.ErrDuplicateReference) {
			e.emit(ctx, eventsink.TypeEntryFailed, entry)
		}
		return TransferEntry{}, err
	}
}

func (e *Engine) emit(ctx context.Context, eventType string, entry TransferEntry) {
	var accountID uuid.UUID
	switch {
	case entry.Receiver != nil:
		accountID = *entry.Receiver
	case entry.Sender != nil:
		accountID = *entry.Sender
	}
	e.sink.Emit(ctx, eventsink.Event{
		Type:      eventType,
		EntryID:   entry.ID,
		AccountID: accountID,
		Kind:      string(entry.Kind),
		Amount:    entry.Amount,
		Reference: entry.Reference,
		At:        time.Now().UTC(),
	})
}

func validatePosting(p Posting) error {
	if !p.Amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("unsupported kind %q", p.Kind)
	}
	switch p.Kind {
	case KindTopUp:
		if p.Sender != nil || p.Receiver == nil {
			return fmt.Errorf("top-up must credit exactly one account")
		}
		if p.Reference == "" {
			return fmt.Errorf("top-up requires a gateway reference")
		}
	case KindGatewaySettlement:
		if p.Sender == nil || p.Receiver != nil {
			return fmt.Errorf("settlement must debit exactly one account")
		}
	default:
		if p.Sender == nil || p.Receiver == nil {
			return fmt.Errorf("%s requires both sender and receiver", p.Kind)
		}
		if *p.Sender == *p.Receiver {
			return fmt.Errorf("sender and receiver must differ")
		}
	}
	return nil
}

// TopUp credits a confirmed gateway charge, idempotent on gatewayRef.
func (e *Engine) TopUp(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, gatewayRef string) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindTopUp, Receiver: &accountID, Amount: amount, Reference: gatewayRef})
}

// Transfer moves BU between two participants.
func (e *Engine) Transfer(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal, message string) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindTransfer, Sender: &senderID, Receiver: &receiverID, Amount: amount, Message: message})
}

// Spray disburses from a guest's balance into an event context.
func (e *Engine) Spray(ctx context.Context, senderID, eventAccountID uuid.UUID, amount decimal.Decimal, message string) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindSpray, Sender: &senderID, Receiver: &eventAccountID, Amount: amount, Message: message})
}

// Redeem converts event-held balance back to a personal wallet.
func (e *Engine) Redeem(ctx context.Context, eventAccountID, receiverID uuid.UUID, amount decimal.Decimal) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindRedemption, Sender: &eventAccountID, Receiver: &receiverID, Amount: amount})
}

// Purchase records a point-of-sale payment to a vendor.
func (e *Engine) Purchase(ctx context.Context, buyerID, vendorID uuid.UUID, amount decimal.Decimal, message string) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindPurchase, Sender: &buyerID, Receiver: &vendorID, Amount: amount, Message: message})
}

// Buyback returns BU from a vendor to a guest.
func (e *Engine) Buyback(ctx context.Context, vendorID, guestID uuid.UUID, amount decimal.Decimal) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindRefund, Sender: &vendorID, Receiver: &guestID, Amount: amount})
}

// GatewayQR records a QR-initiated gateway transfer between two accounts.
func (e *Engine) GatewayQR(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal, message string) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindGatewayQR, Sender: &senderID, Receiver: &receiverID, Amount: amount, Message: message})
}

// Settle records an external payout, debiting the account against the
// gateway, idempotent on gatewayRef.
func (e *Engine) Settle(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, gatewayRef string) (TransferEntry, error) {
	return e.Execute(ctx, Posting{Kind: KindGatewaySettlement, Sender: &accountID, Amount: amount, Reference: gatewayRef})
}
