package routes

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/middleware"
	"github.com/userdesk/userdesk/internal/notification"
	"github.com/userdesk/userdesk/internal/users"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	SQL    *sql.DB
	Cache  *redis.Client
	Logger *slog.Logger
	// Users overrides the user store; tests inject one.
	Users users.Repository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.SQL == nil && d.Users == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Services
	userRepo := d.Users
	if userRepo == nil {
		if d.SQL != nil {
			userRepo = users.NewPostgresRepository(d.SQL)
		} else {
			userRepo = users.NewMemoryRepository()
		}
	}

	var revocations auth.RevocationList
	if d.Cache != nil {
		revocations = auth.NewRedisRevocationList(d.Cache)
	}
	sessions, err := auth.NewService(d.Cfg.AppName, d.Cfg.SessionSecret, d.Cfg.SessionTTL, revocations)
	if err != nil {
		return err
	}

	hasher, err := users.NewHasher(d.Cfg.PasswordHasher)
	if err != nil {
		return err
	}
	notifier := notification.NewLoggerNotifier(d.Logger)
	userSvc := users.NewService(userRepo, hasher, notifier, d.Logger, d.Cfg.PasswordMinLength)
	userHandler := users.NewHandler(userSvc, sessions, d.Cfg.CookieSecure)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Authenticate(sessions, d.Logger))
	// Every authenticated request re-checks the caller's status.
	app.Use(middleware.SessionGate(userRepo, d.Cfg.GateFailClosed, d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	loginLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit)
	registerLimiter := middleware.RegisterRateLimit(d.Cfg.RegisterRateLimit)
	RegisterUserRoutes(app, userHandler, loginLimiter, registerLimiter)

	return nil
}
