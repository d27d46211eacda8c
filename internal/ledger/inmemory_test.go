package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/apperrors"
)

func bu(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestInMemoryStore_TransferMaintainsBalance(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	if err := Seed(ctx, store, a, bu(5_000)); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if err := Seed(ctx, store, b, decimal.Zero); err != nil {
		t.Fatalf("seed b: %v", err)
	}

	entry, err := store.Apply(ctx, Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: bu(3_000)})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if entry.Status != StatusCompleted {
		t.Fatalf("expected completed entry, got %s", entry.Status)
	}

	balA, _ := store.Balance(ctx, a)
	balB, _ := store.Balance(ctx, b)
	if !balA.Equal(bu(2_000)) || !balB.Equal(bu(3_000)) {
		t.Fatalf("unexpected balances: a=%s b=%s", balA, balB)
	}

	// The cached balance must agree with the fold over completed entries.
	for _, id := range []uuid.UUID{a, b} {
		cached, _ := store.Balance(ctx, id)
		folded, err := store.AuthoritativeBalance(ctx, id)
		if err != nil {
			t.Fatalf("authoritative balance: %v", err)
		}
		if !cached.Equal(folded) {
			t.Fatalf("balance disagreement for %s: cached=%s folded=%s", id, cached, folded)
		}
	}
}

func TestInMemoryStore_InsufficientBalance(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, store, a, bu(100))
	Seed(ctx, store, b, decimal.Zero)

	_, err := store.Apply(ctx, Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: bu(200)})
	if !errors.Is(err, apperrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	// Nothing moved and no completed entry was recorded.
	balA, _ := store.Balance(ctx, a)
	if !balA.Equal(bu(100)) {
		t.Fatalf("sender balance changed: %s", balA)
	}
	folded, _ := store.AuthoritativeBalance(ctx, b)
	if !folded.IsZero() {
		t.Fatalf("receiver gained balance: %s", folded)
	}
}

func TestInMemoryStore_DuplicateReference(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	store.EnsureAccount(ctx, a)

	first, err := store.Apply(ctx, Posting{Kind: KindTopUp, Receiver: &a, Amount: bu(5_000), Reference: "gw-1"})
	if err != nil {
		t.Fatalf("first top-up: %v", err)
	}

	replay, err := store.Apply(ctx, Posting{Kind: KindTopUp, Receiver: &a, Amount: bu(5_000), Reference: "gw-1"})
	if !errors.Is(err, apperrors.ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("replay returned a different entry: %s vs %s", replay.ID, first.ID)
	}

	bal, _ := store.Balance(ctx, a)
	if !bal.Equal(bu(5_000)) {
		t.Fatalf("replay moved money: balance=%s", bal)
	}
}

func TestInMemoryStore_UnknownAccount(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	store.EnsureAccount(ctx, a)

	_, err := store.Apply(ctx, Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: bu(10)})
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := store.Balance(ctx, b); !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Fatalf("expected account not found on balance, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentTransfers(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, store, a, bu(100_000))
	Seed(ctx, store, b, bu(100_000))

	const workers = 20
	amount := bu(500)

	// Opposite directions between the same pair, stressing the lock order.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, receiver := a, b
			if i%2 == 1 {
				sender, receiver = b, a
			}
			ref := fmt.Sprintf("tx-%d", i)
			if _, err := store.Apply(ctx, Posting{
				Kind: KindTransfer, Sender: &sender, Receiver: &receiver,
				Amount: amount, Reference: ref,
			}); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	balA, _ := store.Balance(ctx, a)
	balB, _ := store.Balance(ctx, b)
	if !balA.Add(balB).Equal(bu(200_000)) {
		t.Fatalf("ledger not balanced after concurrency: a=%s b=%s", balA, balB)
	}

	foldA, _ := store.AuthoritativeBalance(ctx, a)
	if !foldA.Equal(balA) {
		t.Fatalf("cached/folded disagreement: cached=%s folded=%s", balA, foldA)
	}
}

func TestInMemoryStore_ConcurrentSpendBoundedByBalance(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, store, a, bu(1_000))
	Seed(ctx, store, b, decimal.Zero)

	// 10 spenders of 300 against 1000: at most 3 can complete.
	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Apply(ctx, Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: bu(300)})
			if err == nil {
				mu.Lock()
				completed++
				mu.Unlock()
			} else if !errors.Is(err, apperrors.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if completed != 3 {
		t.Fatalf("expected exactly 3 completions, got %d", completed)
	}
	balA, _ := store.Balance(ctx, a)
	if !balA.Equal(bu(100)) {
		t.Fatalf("expected 100 left, got %s", balA)
	}
	if balA.IsNegative() {
		t.Fatalf("balance went negative: %s", balA)
	}
}

func TestInMemoryStore_EntriesNewestFirst(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	Seed(ctx, store, a, bu(1_000))
	Seed(ctx, store, b, decimal.Zero)

	for i := 0; i < 5; i++ {
		if _, err := store.Apply(ctx, Posting{Kind: KindTransfer, Sender: &a, Receiver: &b, Amount: bu(10)}); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	page, err := store.Entries(ctx, a, 3, 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(page))
	}
	for i := 1; i < len(page); i++ {
		if page[i].CreatedAt.After(page[i-1].CreatedAt) {
			t.Fatalf("entries not newest first")
		}
	}

	rest, err := store.Entries(ctx, a, 10, 3)
	if err != nil {
		t.Fatalf("entries offset: %v", err)
	}
	// 5 transfers plus the seed top-up, minus the first page.
	if len(rest) != 3 {
		t.Fatalf("expected 3 remaining entries, got %d", len(rest))
	}
}
