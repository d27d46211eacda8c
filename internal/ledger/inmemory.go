package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/apperrors"
)

type memAccount struct {
	mu      sync.Mutex
	balance decimal.Decimal
}

type inMemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*memAccount
	entries  []TransferEntry
	byRef    map[string]int
}

// NewInMemory creates a concurrency-safe in-memory ledger store. It is the
// backend for unit tests and dev mode, and follows the same per-account lock
// ordering discipline as the Postgres store.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts: make(map[uuid.UUID]*memAccount),
		byRef:    make(map[string]int),
	}
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		s.accounts[accountID] = &memAccount{balance: decimal.Zero}
	}
	return nil
}

func (s *inMemoryStore) Apply(_ context.Context, p Posting) (TransferEntry, error) {
	involved, accts, err := s.lookupAccounts(p)
	if err != nil {
		return TransferEntry{}, err
	}

	// Exclusive scope per account, taken in lexicographic id order so two
	// postings moving money in opposite directions between the same pair
	// cannot deadlock.
	sort.Slice(involved, func(i, j int) bool {
		return involved[i].String() < involved[j].String()
	})
	for _, id := range involved {
		accts[id].mu.Lock()
	}
	defer func() {
		for _, id := range involved {
			accts[id].mu.Unlock()
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Reference != "" {
		if idx, ok := s.byRef[p.Reference]; ok {
			return s.entries[idx], apperrors.ErrDuplicateReference
		}
	}

	if p.Sender != nil && !p.Kind.External() {
		if accts[*p.Sender].balance.LessThan(p.Amount) {
			return TransferEntry{}, apperrors.ErrInsufficientBalance
		}
	}

	entry := TransferEntry{
		ID:        uuid.New(),
		Sender:    p.Sender,
		Receiver:  p.Receiver,
		Amount:    p.Amount,
		Kind:      p.Kind,
		Status:    StatusPending,
		Reference: p.Reference,
		Message:   p.Message,
		CreatedAt: time.Now().UTC(),
	}

	if p.Sender != nil {
		acct := accts[*p.Sender]
		acct.balance = acct.balance.Sub(p.Amount)
	}
	if p.Receiver != nil {
		acct := accts[*p.Receiver]
		acct.balance = acct.balance.Add(p.Amount)
	}

	entry.Status = StatusCompleted
	s.entries = append(s.entries, entry)
	if p.Reference != "" {
		s.byRef[p.Reference] = len(s.entries) - 1
	}
	return entry, nil
}

func (s *inMemoryStore) lookupAccounts(p Posting) ([]uuid.UUID, map[uuid.UUID]*memAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	involved := make([]uuid.UUID, 0, 2)
	accts := make(map[uuid.UUID]*memAccount, 2)
	for _, ref := range []*uuid.UUID{p.Sender, p.Receiver} {
		if ref == nil {
			continue
		}
		acct, ok := s.accounts[*ref]
		if !ok {
			return nil, nil, apperrors.ErrAccountNotFound
		}
		if _, seen := accts[*ref]; !seen {
			involved = append(involved, *ref)
			accts[*ref] = acct
		}
	}
	return involved, accts, nil
}

func (s *inMemoryStore) Balance(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	acct, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, apperrors.ErrAccountNotFound
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance, nil
}

func (s *inMemoryStore) AuthoritativeBalance(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return decimal.Zero, apperrors.ErrAccountNotFound
	}
	total := decimal.Zero
	for _, e := range s.entries {
		if e.Status != StatusCompleted {
			continue
		}
		if e.Receiver != nil && *e.Receiver == accountID {
			total = total.Add(e.Amount)
		}
		if e.Sender != nil && *e.Sender == accountID {
			total = total.Sub(e.Amount)
		}
	}
	return total, nil
}

func (s *inMemoryStore) Entries(_ context.Context, accountID uuid.UUID, limit, offset int) ([]TransferEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, apperrors.ErrAccountNotFound
	}

	out := make([]TransferEntry, 0, limit)
	skipped := 0
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		mine := (e.Sender != nil && *e.Sender == accountID) || (e.Receiver != nil && *e.Receiver == accountID)
		if !mine {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
