// Package postgres opens the database/sql pool on the pgx driver and applies
// the embedded schema.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"coinledger/internal/platform/config"
	"coinledger/pkg/platform/sentinel"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres SQLSTATE codes the stores classify.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeFKViolation     = "23503"
)

// Open connects, verifies the connection and applies pool limits.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Health returns a check that pings db. Failures wrap sentinel.ErrUnavailable.
func Health(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres %w: %w", sentinel.ErrUnavailable, err)
		}
		return nil
	}
}

// Migrate applies every embedded migration in lexical order. Migrations are
// idempotent DDL.
func Migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// IsCheckViolation reports whether err is a CHECK constraint failure, which
// the ledger tables use to keep balances non-negative.
func IsCheckViolation(err error) bool {
	return hasCode(err, codeCheckViolation)
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolation reports whether err references a missing row.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeFKViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
