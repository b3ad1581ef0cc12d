package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/users"
)

// BlockedMessage is the body returned to blocked users.
const BlockedMessage = "User is blocked"

// StatusReader is the read side of the user status store.
type StatusReader interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// SessionGate re-reads the caller's status on every request and stops blocked
// users even when their session is otherwise valid. Anonymous requests pass.
// An identity that no longer resolves to a user passes unless failClosed is set.
func SessionGate(store StatusReader, failClosed bool, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := auth.IdentityFrom(c.UserContext())
		if !ok {
			return c.Next()
		}

		user, err := store.Get(c.UserContext(), id.UserID)
		switch {
		case errors.Is(err, users.ErrNotFound):
			if failClosed {
				return c.Status(http.StatusForbidden).SendString(BlockedMessage)
			}
			return c.Next()
		case err != nil:
			logger.ErrorContext(c.UserContext(), "session gate lookup failed", slog.String("user_id", id.UserID), slog.Any("error", err))
			return fiber.NewError(http.StatusServiceUnavailable, "user status unavailable")
		case user.Blocked():
			logger.WarnContext(c.UserContext(), "blocked user request rejected",
				slog.String("user_id", id.UserID),
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
			)
			return c.Status(http.StatusForbidden).SendString(BlockedMessage)
		}
		return c.Next()
	}
}
