package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/apperrors"
	"github.com/CodeXPrim8/BU/internal/eventsink"
	"github.com/CodeXPrim8/BU/internal/logging"
)

type captureSink struct {
	mu     sync.Mutex
	events []eventsink.Event
}

func (s *captureSink) Emit(_ context.Context, event eventsink.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

// conflictStore fails with lock contention a fixed number of times before
// delegating to the real store.
type conflictStore struct {
	Store
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (s *conflictStore) Apply(ctx context.Context, p Posting) (TransferEntry, error) {
	s.mu.Lock()
	s.attempts++
	fail := s.conflicts > 0
	if fail {
		s.conflicts--
	}
	s.mu.Unlock()
	if fail {
		return TransferEntry{}, apperrors.ErrConcurrencyConflict
	}
	return s.Store.Apply(ctx, p)
}

// faultStore accepts any posting and then fails it the way a store-side fault
// after the entry insert would, handing back the entry resolved to failed
// with its reference released.
type faultStore struct {
	Store
}

func (s *faultStore) Apply(_ context.Context, p Posting) (TransferEntry, error) {
	entry := TransferEntry{
		ID:       uuid.New(),
		Sender:   p.Sender,
		Receiver: p.Receiver,
		Amount:   p.Amount,
		Kind:     p.Kind,
		Status:   StatusFailed,
		Message:  p.Message,
	}
	return entry, apperrors.ErrStoreUnavailable
}

// staleReplayStore answers every posting with a prior entry that never
// completed, as a store with a stuck reference would.
type staleReplayStore struct {
	Store
	prior TransferEntry
}

func (s *staleReplayStore) Apply(context.Context, Posting) (TransferEntry, error) {
	return s.prior, apperrors.ErrDuplicateReference
}

func TestEngine_ValidatePosting(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	cases := []struct {
		name    string
		posting Posting
	}{
		{"zero amount", Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: decimal.Zero}},
		{"negative amount", Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: bu(-5)}},
		{"unknown kind", Posting{Kind: Kind("loan"), Sender: &a, Receiver: &b, Amount: bu(10)}},
		{"topup with sender", Posting{Kind: KindTopUp, Sender: &a, Receiver: &b, Amount: bu(10), Reference: "r"}},
		{"topup without reference", Posting{Kind: KindTopUp, Receiver: &b, Amount: bu(10)}},
		{"settlement with receiver", Posting{Kind: KindGatewaySettlement, Sender: &a, Receiver: &b, Amount: bu(10)}},
		{"transfer missing receiver", Posting{Kind: KindTransfer, Sender: &a, Amount: bu(10)}},
		{"self transfer", Posting{Kind: KindTransfer, Sender: &a, Receiver: &a, Amount: bu(10)}},
	}

	engine := NewEngine(NewInMemory(), nil, logging.Discard())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Execute(context.Background(), tc.posting); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEngine_UnsupportedKindIsNotAnAmountError(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	engine := NewEngine(NewInMemory(), nil, logging.Discard())

	_, err := engine.Execute(context.Background(), Posting{Kind: Kind("loan"), Sender: &a, Receiver: &b, Amount: bu(10)})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if errors.Is(err, apperrors.ErrInvalidAmount) {
		t.Fatalf("a kind problem must not read as an amount problem: %v", err)
	}
}

func TestEngine_SettlementCannotOverdraw(t *testing.T) {
	store := NewInMemory()
	engine := NewEngine(store, nil, logging.Discard())
	ctx := context.Background()

	vendor := uuid.New()
	Seed(ctx, store, vendor, bu(100))

	if _, err := engine.Settle(ctx, vendor, bu(500), "payout-1"); !errors.Is(err, apperrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	bal, _ := store.Balance(ctx, vendor)
	if !bal.Equal(bu(100)) {
		t.Fatalf("balance moved on a rejected settlement: %s", bal)
	}
}

func TestEngine_TopUpReplayIsSuccess(t *testing.T) {
	store := NewInMemory()
	sink := &captureSink{}
	engine := NewEngine(store, sink, logging.Discard())
	ctx := context.Background()

	a := uuid.New()
	store.EnsureAccount(ctx, a)

	first, err := engine.TopUp(ctx, a, bu(5_000), "gw-abc")
	if err != nil {
		t.Fatalf("first top-up: %v", err)
	}

	// The engine converts the store's duplicate error into a success.
	replay, err := engine.TopUp(ctx, a, bu(5_000), "gw-abc")
	if err != nil {
		t.Fatalf("replay should succeed, got %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("replay returned different entry")
	}

	bal, _ := store.Balance(ctx, a)
	if !bal.Equal(bu(5_000)) {
		t.Fatalf("expected 5000 credited once, got %s", bal)
	}

	types := sink.types()
	if len(types) != 2 || types[0] != eventsink.TypeEntryCompleted || types[1] != eventsink.TypeTopUpReplayed {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

func TestEngine_FailureAfterInsertResolvesToFailed(t *testing.T) {
	inner := NewInMemory()
	store := &faultStore{Store: inner}
	sink := &captureSink{}
	engine := NewEngine(store, sink, logging.Discard())
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, inner, a, bu(1_000))
	Seed(ctx, inner, b, decimal.Zero)

	entry, err := engine.Transfer(ctx, a, b, bu(100), "")
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if entry != (TransferEntry{}) {
		t.Fatalf("a failed operation must not hand back an entry: %+v", entry)
	}

	types := sink.types()
	if len(types) != 1 || types[0] != eventsink.TypeEntryFailed {
		t.Fatalf("expected a single failed-entry event, got %v", types)
	}

	for id, want := range map[uuid.UUID]decimal.Decimal{a: bu(1_000), b: decimal.Zero} {
		bal, _ := inner.Balance(ctx, id)
		if !bal.Equal(want) {
			t.Fatalf("balance moved on a failed operation: %s has %s", id, bal)
		}
	}
}

func TestEngine_FailedPriorEntryIsNotAReplay(t *testing.T) {
	prior := TransferEntry{ID: uuid.New(), Kind: KindTopUp, Status: StatusFailed, Amount: bu(5_000)}
	store := &staleReplayStore{Store: NewInMemory(), prior: prior}
	sink := &captureSink{}
	engine := NewEngine(store, sink, logging.Discard())

	a := uuid.New()
	if _, err := engine.TopUp(context.Background(), a, bu(5_000), "gw-stuck"); !errors.Is(err, apperrors.ErrDuplicateReference) {
		t.Fatalf("a failed prior entry must surface the error, got %v", err)
	}
	if types := sink.types(); len(types) != 0 {
		t.Fatalf("no events expected, got %v", types)
	}
}

func TestEngine_RetriesLockContention(t *testing.T) {
	inner := NewInMemory()
	store := &conflictStore{Store: inner, conflicts: 2}
	engine := NewEngine(store, nil, logging.Discard())
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, inner, a, bu(1_000))
	Seed(ctx, inner, b, decimal.Zero)

	entry, err := engine.Transfer(ctx, a, b, bu(100), "")
	if err != nil {
		t.Fatalf("transfer should succeed after retries: %v", err)
	}
	if entry.Status != StatusCompleted {
		t.Fatalf("unexpected status %s", entry.Status)
	}
	if store.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.attempts)
	}
}

func TestEngine_SurfacesExhaustedConflict(t *testing.T) {
	inner := NewInMemory()
	store := &conflictStore{Store: inner, conflicts: 100}
	engine := NewEngine(store, nil, logging.Discard())
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, inner, a, bu(1_000))
	Seed(ctx, inner, b, decimal.Zero)

	if _, err := engine.Transfer(ctx, a, b, bu(100), ""); !errors.Is(err, apperrors.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if store.attempts != 4 {
		t.Fatalf("expected initial attempt plus 3 retries, got %d", store.attempts)
	}
}

func TestEngine_KindWrappers(t *testing.T) {
	store := NewInMemory()
	engine := NewEngine(store, nil, logging.Discard())
	ctx := context.Background()

	guest := uuid.New()
	event := uuid.New()
	vendor := uuid.New()
	Seed(ctx, store, guest, bu(10_000))
	Seed(ctx, store, event, decimal.Zero)
	Seed(ctx, store, vendor, decimal.Zero)

	spray, err := engine.Spray(ctx, guest, event, bu(1_000), "congrats")
	if err != nil {
		t.Fatalf("spray: %v", err)
	}
	if spray.Kind != KindSpray || *spray.Sender != guest || *spray.Receiver != event {
		t.Fatalf("unexpected spray entry: %+v", spray)
	}

	redeem, err := engine.Redeem(ctx, event, guest, bu(400))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeem.Kind != KindRedemption || *redeem.Sender != event || *redeem.Receiver != guest {
		t.Fatalf("unexpected redeem entry: %+v", redeem)
	}

	purchase, err := engine.Purchase(ctx, guest, vendor, bu(500), "drinks")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if purchase.Kind != KindPurchase {
		t.Fatalf("unexpected purchase kind %s", purchase.Kind)
	}

	buyback, err := engine.Buyback(ctx, vendor, guest, bu(200))
	if err != nil {
		t.Fatalf("buyback: %v", err)
	}
	if buyback.Kind != KindRefund {
		t.Fatalf("unexpected buyback kind %s", buyback.Kind)
	}

	qr, err := engine.GatewayQR(ctx, guest, vendor, bu(50), "")
	if err != nil {
		t.Fatalf("gateway qr: %v", err)
	}
	if qr.Kind != KindGatewayQR {
		t.Fatalf("unexpected qr kind %s", qr.Kind)
	}

	settle, err := engine.Settle(ctx, vendor, bu(100), "payout-1")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settle.Kind != KindGatewaySettlement || settle.Receiver != nil {
		t.Fatalf("unexpected settlement entry: %+v", settle)
	}

	// Conservation across everything that stayed inside the ledger.
	total := decimal.Zero
	for _, id := range []uuid.UUID{guest, event, vendor} {
		bal, _ := store.Balance(ctx, id)
		folded, _ := store.AuthoritativeBalance(ctx, id)
		if !bal.Equal(folded) {
			t.Fatalf("cached/folded disagreement for %s", id)
		}
		total = total.Add(bal)
	}
	// 10000 seeded, 100 settled out.
	if !total.Equal(bu(9_900)) {
		t.Fatalf("expected total 9900, got %s", total)
	}
}
