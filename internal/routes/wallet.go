package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CodeXPrim8/BU/internal/wallet"
)

// RegisterWalletRoutes wires wallet overview, history, and transfer endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Get)
	r.Get("/wallet/receive", h.Receive)
	r.Get("/wallet/transactions", h.Transactions)
	r.Post("/wallet/topup", h.TopUp)
	r.Post("/wallet/send", h.Send)
}
