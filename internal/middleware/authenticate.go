package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/userdesk/userdesk/internal/auth"
)

// userIDLocal mirrors the identity into fiber locals for logging and rate limiting.
const userIDLocal = "user_id"

// SessionVerifier turns a presented token into an identity.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Authenticate establishes the request identity from a bearer token or the
// session cookie. Requests without a usable credential continue anonymously.
func Authenticate(verifier SessionVerifier, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(auth.CookieName)
		}
		if token == "" {
			return c.Next()
		}

		id, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) || errors.Is(err, auth.ErrSessionRevoked) {
				return c.Next()
			}
			logger.ErrorContext(c.UserContext(), "session verification failed", slog.Any("error", err))
			return fiber.NewError(http.StatusServiceUnavailable, "session store unavailable")
		}

		c.SetUserContext(auth.WithIdentity(c.UserContext(), id))
		c.Locals(userIDLocal, id.UserID)
		return c.Next()
	}
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := auth.IdentityFrom(c.UserContext()); !ok {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}
