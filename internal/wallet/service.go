package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/account"
	"github.com/CodeXPrim8/BU/internal/apperrors"
	"github.com/CodeXPrim8/BU/internal/ledger"
	"github.com/CodeXPrim8/BU/internal/policy"
)

// Service exposes the wallet surface: balance, history, top-up and sending
// BU. Every operation is gated by the access policy for the caller's active
// mode.
type Service struct {
	accounts *account.Service
	engine   *ledger.Engine
	balances *ledger.BalanceService
	history  *ledger.History
}

// NewService builds a wallet service.
func NewService(accounts *account.Service, engine *ledger.Engine, balances *ledger.BalanceService, history *ledger.History) *Service {
	return &Service{accounts: accounts, engine: engine, balances: balances, history: history}
}

// Caller identifies the authenticated account and the mode it acts in.
type Caller struct {
	AccountID uuid.UUID
	Role      account.Role
	Mode      policy.Mode
}

func (c Caller) allowed(action policy.Action) error {
	if !policy.Allows(c.Mode, c.Role, action) {
		return fmt.Errorf("%w: %s in %s", apperrors.ErrModeNotAllowed, action, c.Mode)
	}
	return nil
}

// Overview is the wallet screen payload.
type Overview struct {
	Account account.Account
	Balance decimal.Decimal
}

// Get returns the caller's account and current balance.
func (s *Service) Get(ctx context.Context, caller Caller) (Overview, error) {
	if err := caller.allowed(policy.ActionViewWallet); err != nil {
		return Overview{}, err
	}
	acct, err := s.accounts.Get(ctx, caller.AccountID)
	if err != nil {
		return Overview{}, err
	}
	balance, err := s.balances.Balance(ctx, caller.AccountID)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Account: acct, Balance: balance}, nil
}

// Transactions lists the caller's transaction history.
func (s *Service) Transactions(ctx context.Context, caller Caller, limit, offset int) ([]ledger.Transaction, error) {
	if err := caller.allowed(policy.ActionViewHistory); err != nil {
		return nil, err
	}
	return s.history.List(ctx, caller.AccountID, limit, offset)
}

// TopUp credits a confirmed gateway charge to the caller's wallet,
// idempotent on the gateway reference.
func (s *Service) TopUp(ctx context.Context, caller Caller, amount decimal.Decimal, gatewayRef string) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionTopUp); err != nil {
		return ledger.TransferEntry{}, err
	}
	return s.engine.TopUp(ctx, caller.AccountID, amount, gatewayRef)
}

// ReceiveDetails returns what a payer needs to address the caller: the
// payload behind the wallet's receive QR code.
func (s *Service) ReceiveDetails(ctx context.Context, caller Caller) (account.Account, error) {
	if err := caller.allowed(policy.ActionReceive); err != nil {
		return account.Account{}, err
	}
	return s.accounts.Get(ctx, caller.AccountID)
}

// SendInput captures a peer transfer request. Either ReceiverID or
// ReceiverPhone identifies the recipient.
type SendInput struct {
	ReceiverID    uuid.UUID
	ReceiverPhone string
	Amount        decimal.Decimal
	Message       string
}

// Send transfers BU from the caller to another participant.
func (s *Service) Send(ctx context.Context, caller Caller, input SendInput) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionSend); err != nil {
		return ledger.TransferEntry{}, err
	}

	receiverID := input.ReceiverID
	if receiverID == uuid.Nil {
		if input.ReceiverPhone == "" {
			return ledger.TransferEntry{}, fmt.Errorf("receiver is required")
		}
		receiver, err := s.accounts.FindByPhone(ctx, input.ReceiverPhone)
		if err != nil {
			return ledger.TransferEntry{}, err
		}
		receiverID = receiver.ID
	}

	return s.engine.Transfer(ctx, caller.AccountID, receiverID, input.Amount, input.Message)
}
