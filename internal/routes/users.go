package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/userdesk/userdesk/internal/middleware"
	"github.com/userdesk/userdesk/internal/users"
)

// RegisterUserRoutes wires account and moderation endpoints.
func RegisterUserRoutes(r fiber.Router, h *users.Handler, loginLimiter, registerLimiter fiber.Handler) {
	group := r.Group("/users")

	// Public
	group.Post("/register", withLimiter(registerLimiter, h.Register)...)
	group.Post("/login", withLimiter(loginLimiter, h.Login)...)

	// Session required
	authed := middleware.RequireIdentity()
	group.Post("/logout", authed, h.Logout)
	group.Get("/me", authed, h.Me)
	group.Get("", authed, h.List)
	group.Post("/bulk", authed, h.Bulk)
	group.Post("/block/:id", authed, h.Block)
	group.Post("/unblock/:id", authed, h.Unblock)
	group.Post("/delete/:id", authed, h.Delete)
	group.Get("/:id", authed, h.Get)
}

func withLimiter(limiter fiber.Handler, h fiber.Handler) []fiber.Handler {
	if limiter == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{limiter, h}
}
