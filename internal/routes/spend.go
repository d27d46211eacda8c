package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CodeXPrim8/BU/internal/spend"
)

// RegisterSpendRoutes wires spray, redemption, purchase, buyback, and the
// vendor-mode sale and payout endpoints.
func RegisterSpendRoutes(r fiber.Router, h *spend.Handler) {
	r.Post("/spend/spray", h.Spray)
	r.Post("/spend/redeem", h.Redeem)
	r.Post("/spend/purchase", h.Purchase)
	r.Post("/spend/buyback", h.Buyback)
	r.Post("/spend/sale", h.Sale)
	r.Post("/spend/settle", h.Settle)
}
