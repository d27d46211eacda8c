package account

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/CodeXPrim8/BU/internal/apperrors"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
	byPhone  map[string]uuid.UUID
}

// NewMemoryRepository builds an in-memory account store for tests and dev
// mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		accounts: make(map[uuid.UUID]Account),
		byPhone:  make(map[string]uuid.UUID),
	}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acct.ID]; exists {
		return apperrors.ErrAccountExists
	}
	if _, exists := r.byPhone[acct.Phone]; exists {
		return apperrors.ErrAccountExists
	}
	r.accounts[acct.ID] = acct
	r.byPhone[acct.Phone] = acct.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[id]
	if !ok {
		return Account{}, apperrors.ErrAccountNotFound
	}
	return acct, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Account{}, apperrors.ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func (r *memoryRepository) UpdateRole(_ context.Context, id uuid.UUID, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return apperrors.ErrAccountNotFound
	}
	acct.Role = role
	r.accounts[id] = acct
	return nil
}
