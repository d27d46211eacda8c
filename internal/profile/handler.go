package profile

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeXPrim8/BU/internal/account"
	"github.com/CodeXPrim8/BU/internal/middleware"
	"github.com/CodeXPrim8/BU/internal/policy"
	"github.com/CodeXPrim8/BU/internal/render"
)

// Handler exposes account and profile HTTP endpoints on top of the account
// service.
type Handler struct {
	accounts *account.Service
}

// NewHandler builds a profile HTTP handler.
func NewHandler(accounts *account.Service) *Handler {
	return &Handler{accounts: accounts}
}

type registerRequest struct {
	Phone       string `json:"phone" validate:"required,e164"`
	DisplayName string `json:"display_name" validate:"max=80"`
	Role        string `json:"role"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type accountResponse struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

// Register opens a new account with a zero-balance wallet.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}

	acct, err := h.accounts.Register(c.UserContext(), account.RegisterInput{
		Phone:       req.Phone,
		DisplayName: req.DisplayName,
		Role:        account.Role(req.Role),
	})
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toAccountResponse(acct))
}

// Me returns the caller's profile along with the mode the policy gate
// resolved for this request.
func (h *Handler) Me(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)
	acct, err := h.accounts.Get(c.UserContext(), identity.AccountID)
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account":         toAccountResponse(acct),
		"mode":            identity.Mode,
		"mode_redirected": identity.ModeRedirected,
	})
}

// Upgrade applies the one-way role upgrade to the caller's account.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)
	acct, err := h.accounts.UpgradeToVendor(c.UserContext(), identity.AccountID)
	if err != nil {
		return render.Error(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acct))
}

// Mode resolves a requested mode through the policy gate without switching
// anything server-side. Clients call it before rendering a mode surface so a
// disallowed request redirects immediately.
func (h *Handler) Mode(c *fiber.Ctx) error {
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := render.Validate(req); err != nil {
		return err
	}
	requested, err := policy.ParseMode(req.Mode)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	identity := middleware.IdentityFrom(c)
	mode, redirected := policy.EnterMode(identity.Role, requested)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"mode":       mode,
		"redirected": redirected,
	})
}

func toAccountResponse(acct account.Account) accountResponse {
	return accountResponse{
		ID:          acct.ID.String(),
		Phone:       acct.Phone,
		DisplayName: acct.DisplayName,
		Role:        string(acct.Role),
		CreatedAt:   acct.CreatedAt.UTC().Format(time.RFC3339),
	}
}
