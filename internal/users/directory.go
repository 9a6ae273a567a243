// internal/users/directory.go
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUnknownUser = errors.New("unknown user")

// Directory resolves display names from the external user store.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// querier is the slice of *pgxpool.Pool the directory needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads usernames from the users table. It is read-only.
type PostgresDirectory struct {
	db querier
}

func NewPostgresDirectory(db querier) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Connect opens a pgx pool for connStr and pings it.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

func (d *PostgresDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", ErrUnknownUser
	}
	var username string
	q := `SELECT username FROM users WHERE id=$1`
	if err := d.db.QueryRow(ctx, q, id).Scan(&username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownUser
		}
		return "", fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if username == "" {
		return "", ErrUnknownUser
	}
	return username, nil
}
