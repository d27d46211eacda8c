package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/ledger"
	"github.com/CodeXPrim8/BU/internal/middleware"
	"github.com/CodeXPrim8/BU/internal/render"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type topUpRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	GatewayRef string          `json:"gateway_ref" validate:"required"`
}

type sendRequest struct {
	ReceiverID    string          `json:"receiver_id"`
	ReceiverPhone string          `json:"receiver_phone"`
	Amount        decimal.Decimal `json:"amount"`
	Message       string          `json:"message" validate:"max=280"`
}

type entryResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Message   string          `json:"message,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type transactionResponse struct {
	ID           string          `json:"id"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	Counterparty string          `json:"counterparty"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	Message      string          `json:"message,omitempty"`
}

// Get returns the caller's wallet overview.
func (h *Handler) Get(c *fiber.Ctx) error {
	overview, err := h.service.Get(c.UserContext(), callerFrom(c))
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":   overview.Account.ID,
		"display_name": overview.Account.DisplayName,
		"role":         overview.Account.Role,
		"balance":      overview.Balance,
	})
}

// Transactions lists the caller's transaction history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", ledger.DefaultHistoryLimit)
	offset := c.QueryInt("offset", 0)

	txs, err := h.service.Transactions(c.UserContext(), callerFrom(c), limit, offset)
	if err != nil {
		return render.Error(err)
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:           tx.ID.String(),
			Direction:    string(tx.Direction),
			Amount:       tx.Amount,
			Date:         tx.Date.UTC().Format(time.RFC3339),
			Counterparty: tx.Counterparty,
			Kind:         string(tx.Kind),
			Status:       string(tx.Status),
			Message:      tx.Message,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out, "total": len(out)})
}

// Receive returns the caller's receive code payload.
func (h *Handler) Receive(c *fiber.Ctx) error {
	acct, err := h.service.ReceiveDetails(c.UserContext(), callerFrom(c))
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":   acct.ID,
		"phone":        acct.Phone,
		"display_name": acct.DisplayName,
	})
}

// TopUp credits a confirmed gateway charge to the caller's wallet.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	entry, err := h.service.TopUp(c.UserContext(), callerFrom(c), req.Amount, req.GatewayRef)
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toEntryResponse(entry))
}

// Send transfers BU from the caller to another participant.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	input := SendInput{ReceiverPhone: req.ReceiverPhone, Amount: req.Amount, Message: req.Message}
	if req.ReceiverID != "" {
		id, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid receiver_id")
		}
		input.ReceiverID = id
	}

	entry, err := h.service.Send(c.UserContext(), callerFrom(c), input)
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toEntryResponse(entry))
}

func toEntryResponse(entry ledger.TransferEntry) entryResponse {
	return entryResponse{
		ID:        entry.ID.String(),
		Kind:      string(entry.Kind),
		Status:    string(entry.Status),
		Amount:    entry.Amount,
		Reference: entry.Reference,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func callerFrom(c *fiber.Ctx) Caller {
	identity := middleware.IdentityFrom(c)
	return Caller{AccountID: identity.AccountID, Role: identity.Role, Mode: identity.Mode}
}
