package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CodeXPrim8/BU/internal/eventsink"
	"github.com/CodeXPrim8/BU/internal/ledger"
)

// Service manages the account lifecycle: created at registration, role
// upgraded one-way, never deleted. It also acts as the user directory the
// history projector reads display names from.
type Service struct {
	repo  Repository
	store ledger.Store
	sink  eventsink.Sink
}

// NewService builds an account service. The ledger store is needed so every
// new account starts with a zero-balance ledger account.
func NewService(repo Repository, store ledger.Store, sink eventsink.Sink) *Service {
	if sink == nil {
		sink = eventsink.Discard{}
	}
	return &Service{repo: repo, store: store, sink: sink}
}

// RegisterInput captures data required to open an account.
type RegisterInput struct {
	Phone       string
	DisplayName string
	Role        Role
}

// Register opens an account and its ledger account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	if input.Phone == "" {
		return Account{}, fmt.Errorf("phone is required")
	}
	role := input.Role
	if role == "" {
		role = RoleGuest
	}
	if _, err := ParseRole(string(role)); err != nil {
		return Account{}, err
	}

	acct := Account{
		ID:          uuid.New(),
		Phone:       input.Phone,
		DisplayName: input.DisplayName,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}
	if err := s.store.EnsureAccount(ctx, acct.ID); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, id)
}

// FindByPhone fetches an account by phone number, used to resolve transfer
// recipients from contacts.
func (s *Service) FindByPhone(ctx context.Context, phone string) (Account, error) {
	return s.repo.FindByPhone(ctx, phone)
}

// UpgradeToVendor applies the one-way role upgrade. Re-requesting on an
// account that already vends is a no-op.
func (s *Service) UpgradeToVendor(ctx context.Context, id uuid.UUID) (Account, error) {
	acct, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}

	upgraded := acct.Role.Upgrade()
	if upgraded == acct.Role {
		return acct, nil
	}

	if err := s.repo.UpdateRole(ctx, id, upgraded); err != nil {
		return Account{}, err
	}
	acct.Role = upgraded

	s.sink.Emit(ctx, eventsink.Event{
		Type:      eventsink.TypeRoleUpgraded,
		AccountID: acct.ID,
		At:        time.Now().UTC(),
	})
	return acct, nil
}

// DisplayName implements ledger.Directory.
func (s *Service) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	acct, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return acct.DisplayName, nil
}
