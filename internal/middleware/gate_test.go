package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/logging"
	"github.com/userdesk/userdesk/internal/users"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (users.User, error) {
	return users.User{}, errors.New("connection refused")
}

func gateApp(t *testing.T, store StatusReader, failClosed bool) (*fiber.App, *bool) {
	t.Helper()
	reached := false
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.SetUserContext(auth.WithIdentity(c.UserContext(), auth.Identity{UserID: uid}))
		}
		return c.Next()
	})
	app.Use(SessionGate(store, failClosed, logging.Discard()))
	app.Get("/users", func(c *fiber.Ctx) error {
		reached = true
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &reached
}

func seedUser(t *testing.T, repo users.Repository, id string, status users.Status) {
	t.Helper()
	err := repo.Create(context.Background(), users.User{
		ID:               id,
		Name:             "user-" + id,
		Email:            id + "@example.com",
		Status:           status,
		RegistrationTime: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func doGet(t *testing.T, app *fiber.App, userID string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/users", nil)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
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

func TestSessionGateAnonymousPassesThrough(t *testing.T) {
	app, reached := gateApp(t, users.NewMemoryRepository(), true)

	status, _ := doGet(t, app, "")
	if status != fiber.StatusOK || !*reached {
		t.Fatalf("expected anonymous request to reach handler, got %d", status)
	}
}

func TestSessionGateActivePassesThrough(t *testing.T) {
	repo := users.NewMemoryRepository()
	seedUser(t, repo, "u1", users.StatusActive)
	app, reached := gateApp(t, repo, false)

	status, _ := doGet(t, app, "u1")
	if status != fiber.StatusOK || !*reached {
		t.Fatalf("expected active user to reach handler, got %d", status)
	}
}

func TestSessionGateRejectsBlocked(t *testing.T) {
	repo := users.NewMemoryRepository()
	seedUser(t, repo, "u1", users.StatusBlocked)
	app, reached := gateApp(t, repo, false)

	status, body := doGet(t, app, "u1")
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if body != BlockedMessage {
		t.Fatalf("expected body %q, got %q", BlockedMessage, body)
	}
	if *reached {
		t.Fatalf("handler must not run for blocked users")
	}
}

func TestSessionGateBlockTakesEffectMidSession(t *testing.T) {
	repo := users.NewMemoryRepository()
	seedUser(t, repo, "u1", users.StatusActive)
	app, _ := gateApp(t, repo, false)

	if status, _ := doGet(t, app, "u1"); status != fiber.StatusOK {
		t.Fatalf("expected 200 before block, got %d", status)
	}
	if _, err := repo.SetStatus(context.Background(), "u1", users.StatusBlocked); err != nil {
		t.Fatalf("block: %v", err)
	}
	if status, _ := doGet(t, app, "u1"); status != fiber.StatusForbidden {
		t.Fatalf("expected 403 after block, got %d", status)
	}
	if _, err := repo.SetStatus(context.Background(), "u1", users.StatusActive); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if status, _ := doGet(t, app, "u1"); status != fiber.StatusOK {
		t.Fatalf("expected 200 after unblock, got %d", status)
	}
}

func TestSessionGateUnknownIdentity(t *testing.T) {
	open, reached := gateApp(t, users.NewMemoryRepository(), false)
	if status, _ := doGet(t, open, "ghost"); status != fiber.StatusOK || !*reached {
		t.Fatalf("expected fail-open pass through, got %d", status)
	}

	closed, reachedClosed := gateApp(t, users.NewMemoryRepository(), true)
	if status, _ := doGet(t, closed, "ghost"); status != fiber.StatusForbidden || *reachedClosed {
		t.Fatalf("expected fail-closed rejection, got %d", status)
	}
}

func TestSessionGateStoreFailure(t *testing.T) {
	app, reached := gateApp(t, failingStore{}, false)

	status, _ := doGet(t, app, "u1")
	if status != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	if *reached {
		t.Fatalf("handler must not run when status is unknown")
	}
}

// contextRecorder keeps the context each record was logged with.
type contextRecorder struct {
	ctxs []context.Context
}

func (r *contextRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *contextRecorder) Handle(ctx context.Context, _ slog.Record) error {
	r.ctxs = append(r.ctxs, ctx)
	return nil
}

func (r *contextRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }

func (r *contextRecorder) WithGroup(string) slog.Handler { return r }

func TestSessionGateLogsWithRequestContext(t *testing.T) {
	repo := users.NewMemoryRepository()
	seedUser(t, repo, "u1", users.StatusBlocked)

	rec := &contextRecorder{}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(auth.WithIdentity(c.UserContext(), auth.Identity{UserID: c.Get("X-Test-User")}))
		return c.Next()
	})
	app.Use(SessionGate(repo, false, slog.New(rec)))
	app.Get("/users", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	if status, _ := doGet(t, app, "u1"); status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if len(rec.ctxs) != 1 {
		t.Fatalf("expected one log record, got %d", len(rec.ctxs))
	}
	id, ok := auth.IdentityFrom(rec.ctxs[0])
	if !ok || id.UserID != "u1" {
		t.Fatalf("expected log context to carry the caller identity, got %+v", id)
	}
}
