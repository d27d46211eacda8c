package spend

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

// Service covers the event-context spending surfaces: QR spraying,
// redemption, the vendor point of sale, and vendor payouts. All of them write
// to the same balances as the wallet screen, through the same engine.
type Service struct {
	accounts *account.Service
	engine   *ledger.Engine
}

// NewService builds a spend service.
func NewService(accounts *account.Service, engine *ledger.Engine) *Service {
	return &Service{accounts: accounts, engine: engine}
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

// Spray disburses from the caller's balance into an event context.
func (s *Service) Spray(ctx context.Context, caller Caller, eventAccountID uuid.UUID, amount decimal.Decimal, message string) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionSpray); err != nil {
		return ledger.TransferEntry{}, err
	}
	return s.engine.Spray(ctx, caller.AccountID, eventAccountID, amount, message)
}

// Redeem converts event-held balance back to the caller's wallet.
func (s *Service) Redeem(ctx context.Context, caller Caller, eventAccountID uuid.UUID, amount decimal.Decimal) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionRedeem); err != nil {
		return ledger.TransferEntry{}, err
	}
	return s.engine.Redeem(ctx, eventAccountID, caller.AccountID, amount)
}

// Purchase pays a vendor from the caller's balance.
func (s *Service) Purchase(ctx context.Context, caller Caller, vendorID uuid.UUID, amount decimal.Decimal, message string) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionPurchase); err != nil {
		return ledger.TransferEntry{}, err
	}
	vendor, err := s.accounts.Get(ctx, vendorID)
	if err != nil {
		return ledger.TransferEntry{}, err
	}
	if !vendor.Role.CanVend() {
		return ledger.TransferEntry{}, fmt.Errorf("receiver is not a vendor")
	}
	return s.engine.Purchase(ctx, caller.AccountID, vendorID, amount, message)
}

// Buyback returns BU from the vendor caller to a guest.
func (s *Service) Buyback(ctx context.Context, caller Caller, guestID uuid.UUID, amount decimal.Decimal) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionBuyback); err != nil {
		return ledger.TransferEntry{}, err
	}
	return s.engine.Buyback(ctx, caller.AccountID, guestID, amount)
}

// Sale charges a guest who paid at the vendor caller's stand by scanning its
// QR code. The guest's wallet funds it, so the usual balance check applies.
func (s *Service) Sale(ctx context.Context, caller Caller, guestID uuid.UUID, amount decimal.Decimal, message string) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionVendorSale); err != nil {
		return ledger.TransferEntry{}, err
	}
	return s.engine.GatewayQR(ctx, guestID, caller.AccountID, amount, message)
}

// Settle records a payout of the vendor caller's balance to the gateway,
// idempotent on the payout reference.
func (s *Service) Settle(ctx context.Context, caller Caller, amount decimal.Decimal, reference string) (ledger.TransferEntry, error) {
	if err := caller.allowed(policy.ActionGatewaySetup); err != nil {
		return ledger.TransferEntry{}, err
	}
	return s.engine.Settle(ctx, caller.AccountID, amount, reference)
}
