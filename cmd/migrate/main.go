package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/userdesk/userdesk/internal/infra"
	"github.com/userdesk/userdesk/internal/logging"
	"github.com/userdesk/userdesk/internal/migrations"
)

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infra.NewPostgresPool(ctx, dsn)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Up(ctx, infra.SQLFromPool(pool)); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	logger.Info("migrations applied")
}
