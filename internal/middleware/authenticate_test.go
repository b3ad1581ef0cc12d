package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/logging"
)

func authApp(t *testing.T, sessions *auth.Service) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(Authenticate(sessions, logging.Discard()))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id, ok := auth.IdentityFrom(c.UserContext())
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(id.UserID)
	})
	app.Get("/private", RequireIdentity(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func readBody(t *testing.T, app *fiber.App, path string, setup func(*http.Request)) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if setup != nil {
		setup(req)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestAuthenticateBearerAndCookie(t *testing.T) {
	sessions, err := auth.NewService("test", "secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new session service: %v", err)
	}
	sess, err := sessions.Issue(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	app := authApp(t, sessions)

	_, body := readBody(t, app, "/whoami", func(r *http.Request) {
		r.Header.Set(fiber.HeaderAuthorization, "Bearer "+sess.Token)
	})
	if body != "user-7" {
		t.Fatalf("expected bearer identity, got %q", body)
	}

	_, body = readBody(t, app, "/whoami", func(r *http.Request) {
		r.Header.Set(fiber.HeaderCookie, auth.CookieName+"="+sess.Token)
	})
	if body != "user-7" {
		t.Fatalf("expected cookie identity, got %q", body)
	}
}

func TestAuthenticateInvalidTokenIsAnonymous(t *testing.T) {
	sessions, err := auth.NewService("test", "secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new session service: %v", err)
	}
	app := authApp(t, sessions)

	_, body := readBody(t, app, "/whoami", func(r *http.Request) {
		r.Header.Set(fiber.HeaderAuthorization, "Bearer garbage")
	})
	if body != "anonymous" {
		t.Fatalf("expected anonymous, got %q", body)
	}

	status, _ := readBody(t, app, "/private", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}
