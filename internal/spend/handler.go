package spend

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/ledger"
	"github.com/CodeXPrim8/BU/internal/middleware"
	"github.com/CodeXPrim8/BU/internal/render"
)

// Handler exposes the spending HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a spend handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sprayRequest struct {
	EventAccountID string          `json:"event_account_id" validate:"required,uuid"`
	Amount         decimal.Decimal `json:"amount"`
	Message        string          `json:"message" validate:"max=280"`
}

type redeemRequest struct {
	EventAccountID string          `json:"event_account_id" validate:"required,uuid"`
	Amount         decimal.Decimal `json:"amount"`
}

type purchaseRequest struct {
	VendorID string          `json:"vendor_id" validate:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
	Message  string          `json:"message" validate:"max=280"`
}

type buybackRequest struct {
	GuestID string          `json:"guest_id" validate:"required,uuid"`
	Amount  decimal.Decimal `json:"amount"`
}

type saleRequest struct {
	GuestID string          `json:"guest_id" validate:"required,uuid"`
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message" validate:"max=280"`
}

type settleRequest struct {
	Reference string          `json:"reference" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Spray disburses from the caller's balance into an event context.
func (h *Handler) Spray(c *fiber.Ctx) error {
	var req sprayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	eventAccountID, _ := uuid.Parse(req.EventAccountID)
	entry, err := h.service.Spray(c.UserContext(), callerFrom(c), eventAccountID, req.Amount, req.Message)
	if err != nil {
		return render.Error(err)
	}
	return created(c, entry)
}

// Redeem converts event-held balance back to the caller's wallet.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	eventAccountID, _ := uuid.Parse(req.EventAccountID)
	entry, err := h.service.Redeem(c.UserContext(), callerFrom(c), eventAccountID, req.Amount)
	if err != nil {
		return render.Error(err)
	}
	return created(c, entry)
}

// Purchase pays a vendor from the caller's balance.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	vendorID, _ := uuid.Parse(req.VendorID)
	entry, err := h.service.Purchase(c.UserContext(), callerFrom(c), vendorID, req.Amount, req.Message)
	if err != nil {
		return render.Error(err)
	}
	return created(c, entry)
}

// Buyback returns BU from the vendor caller to a guest.
func (h *Handler) Buyback(c *fiber.Ctx) error {
	var req buybackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	guestID, _ := uuid.Parse(req.GuestID)
	entry, err := h.service.Buyback(c.UserContext(), callerFrom(c), guestID, req.Amount)
	if err != nil {
		return render.Error(err)
	}
	return created(c, entry)
}

// Sale charges a guest who paid by scanning the vendor caller's QR code.
func (h *Handler) Sale(c *fiber.Ctx) error {
	var req saleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	guestID, _ := uuid.Parse(req.GuestID)
	entry, err := h.service.Sale(c.UserContext(), callerFrom(c), guestID, req.Amount, req.Message)
	if err != nil {
		return render.Error(err)
	}
	return created(c, entry)
}

// Settle records a payout of the vendor caller's balance to the gateway.
func (h *Handler) Settle(c *fiber.Ctx) error {
	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	entry, err := h.service.Settle(c.UserContext(), callerFrom(c), req.Amount, req.Reference)
	if err != nil {
		return render.Error(err)
	}
	return created(c, entry)
}

func created(c *fiber.Ctx, entry ledger.TransferEntry) error {
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         entry.ID,
		"kind":       entry.Kind,
		"status":     entry.Status,
		"amount":     entry.Amount,
		"message":    entry.Message,
		"created_at": entry.CreatedAt,
	})
}

func callerFrom(c *fiber.Ctx) Caller {
	identity := middleware.IdentityFrom(c)
	return Caller{AccountID: identity.AccountID, Role: identity.Role, Mode: identity.Mode}
}
