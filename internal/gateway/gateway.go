package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/ledger"
	"github.com/CodeXPrim8/BU/internal/render"
)

// SignatureHeader carries the gateway's HMAC-SHA512 hex digest of the raw
// callback body.
const SignatureHeader = "X-Gateway-Signature"

// Confirmation is the payload of a confirmed-charge callback. The reference
// is the idempotency key: the same confirmation delivered twice credits the
// account exactly once.
type Confirmation struct {
	Reference string          `json:"reference" validate:"required"`
	AccountID string          `json:"account_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount"`
}

// Handler receives payment-gateway callbacks. The checkout itself happens
// outside this service; only the confirmed charge reaches the ledger.
type Handler struct {
	engine *ledger.Engine
	secret []byte
	logger *slog.Logger
}

// NewHandler builds a gateway callback handler.
func NewHandler(engine *ledger.Engine, secret string, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, secret: []byte(secret), logger: logger}
}

// Confirm credits a confirmed charge. Replays answer from the first entry.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	body := c.Body()
	if !h.verify(body, c.Get(SignatureHeader)) {
		return fiber.NewError(http.StatusUnauthorized, "invalid signature")
	}

	var confirmation Confirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed callback")
	}
	if err := render.Validate(confirmation); err != nil {
		return err
	}

	accountID, _ := uuid.Parse(confirmation.AccountID)
	entry, err := h.engine.TopUp(c.UserContext(), accountID, confirmation.Amount, confirmation.Reference)
	if err != nil {
		h.logger.Warn("gateway confirmation rejected",
			"reference", confirmation.Reference, "error", err)
		return render.Error(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":        entry.ID,
		"status":    entry.Status,
		"amount":    entry.Amount,
		"reference": entry.Reference,
	})
}

func (h *Handler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature the gateway is expected to send. Exported for
// tests and local tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
