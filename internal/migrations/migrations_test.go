package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("read embedded dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	body, err := fs.ReadFile(FS, entries[0].Name())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(body), "-- +goose Up") {
		t.Fatalf("migration %s lacks goose annotation", entries[0].Name())
	}
	if !strings.Contains(string(body), "CHECK (status IN (0, 1))") {
		t.Fatalf("users table must constrain status to two values")
	}
}

func TestUpWrapsGooseError(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return errors.New("boom")
	}

	err := Up(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "apply migrations: boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if gotDir != "." {
		t.Fatalf("expected base dir '.', got %q", gotDir)
	}
}
