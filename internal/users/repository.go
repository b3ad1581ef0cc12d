package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository is the status store: the authoritative record of each user's
// moderation status and activity timestamps.
type Repository interface {
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByName(ctx context.Context, name string) (User, error)
	List(ctx context.Context) ([]User, error)
	SetStatus(ctx context.Context, id string, status Status) (User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) (User, error)
	Delete(ctx context.Context, id string) error
}

// DBTX is the subset of *sql.DB / *sql.Tx used by the Postgres store.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository builds a Postgres-backed user store.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, password_hash, status, registration_time, last_login_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		user      User
		status    int
		lastLogin sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &status, &user.RegistrationTime, &lastLogin); err != nil {
		return User{}, err
	}
	user.Status = Status(status)
	user.RegistrationTime = user.RegistrationTime.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLoginTime = &t
	}
	return user, nil
}

// Create inserts a new user in a single statement, status included.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	if _, err := uuid.Parse(user.ID); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if !user.Status.Valid() {
		return ErrInvalidStatus
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, name, email, password_hash, status, registration_time)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, int(user.Status), user.RegistrationTime.UTC())
	if err != nil {
		return mapWriteError("create user", user, err)
	}
	return nil
}

// Get fetches a user by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.one("get user", row)
}

// FindByEmail fetches a user by email, ignoring case.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return r.one("find user by email", row)
}

// FindByName fetches a user by user name, ignoring case.
func (r *PostgresRepository) FindByName(ctx context.Context, name string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(name) = lower($1)`, name)
	return r.one("find user by name", row)
}

// List returns every user ordered by registration time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY registration_time, id`)
	if err != nil {
		return nil, &StoreError{Op: "list users", Err: err}
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, &StoreError{Op: "list users", Err: err}
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list users", Err: err}
	}
	return out, nil
}

// SetStatus updates the moderation status and returns the stored record.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) (User, error) {
	if !status.Valid() {
		return User{}, ErrInvalidStatus
	}
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `UPDATE users SET status = $1 WHERE id = $2
        RETURNING `+userColumns, int(status), id)
	return r.one("set user status", row)
}

// TouchLogin records a successful credential check.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `UPDATE users SET last_login_time = $1 WHERE id = $2
        RETURNING `+userColumns, at.UTC(), id)
	return r.one("touch user login", row)
}

// Delete removes the user record permanently.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return &StoreError{Op: "delete user", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "delete user", Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) one(op string, row *sql.Row) (User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, &StoreError{Op: op, Err: err}
	}
	return user, nil
}

func mapWriteError(op string, user User, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_email_lower_key":
			return &DuplicateError{Field: "email", Value: user.Email}
		default:
			return &DuplicateError{Field: "name", Value: user.Name}
		}
	}
	return &StoreError{Op: op, Err: err}
}
