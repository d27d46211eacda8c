package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CodeXPrim8/BU/internal/profile"
)

// RegisterProfileRoutes wires profile, mode, and role upgrade endpoints.
func RegisterProfileRoutes(r fiber.Router, h *profile.Handler) {
	r.Get("/me", h.Me)
	r.Post("/mode", h.Mode)
	r.Post("/profile/upgrade", h.Upgrade)
}
