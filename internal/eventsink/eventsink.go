package eventsink

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// TypeEntryCompleted indicates a ledger entry reached completed.
	TypeEntryCompleted = "ledger.entry_completed"
	// TypeEntryFailed indicates a ledger entry resolved to failed.
	TypeEntryFailed = "ledger.entry_failed"
	// TypeTopUpReplayed indicates a gateway confirmation was delivered again
	// and answered from the prior entry.
	TypeTopUpReplayed = "ledger.topup_replayed"
	// TypeRoleUpgraded indicates an account gained vendor privileges.
	TypeRoleUpgraded = "account.role_upgraded"
)

// Event is a structured domain event emitted by the ledger core. Where it
// goes is this package's concern, not the core's.
type Event struct {
	Type      string
	EntryID   uuid.UUID
	AccountID uuid.UUID
	Kind      string
	Amount    decimal.Decimal
	Reference string
	At        time.Time
}

// Sink receives domain events from the ledger core.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// LogSink writes domain events to the structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a logger-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit writes the event to the structured logger.
func (s *LogSink) Emit(_ context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Info("domain event",
		"type", event.Type,
		"entry_id", event.EntryID,
		"account_id", event.AccountID,
		"kind", event.Kind,
		"amount", event.Amount,
		"reference", event.Reference,
	)
}

// Discard drops all events. Useful for tests.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}
