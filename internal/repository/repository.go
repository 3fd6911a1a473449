// Package repository is the PostgreSQL store for users and notes.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSchemaMissing is returned by New when the migrations have not been applied.
var ErrSchemaMissing = errors.New("database schema missing: apply migrations/ first")

// requiredTables are created by migrations/ and read by every query here.
var requiredTables = []string{"users", "notes"}

// Repository implements the note and user stores on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and checks that the schema is in place.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	params := config.ConnConfig.RuntimeParams
	if params["application_name"] == "" {
		params["application_name"] = "notesd"
	}
	// Timestamps are compared against UTC clocks in the service layer.
	params["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	repo := &Repository{pool: pool}
	if err := repo.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := repo.checkSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewFromPool wraps an existing pool without checking the schema.
func NewFromPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) checkSchema(ctx context.Context) error {
	for _, table := range requiredTables {
		var present bool
		err := r.pool.QueryRow(ctx, `SELECT to_regclass('public.' || $1) IS NOT NULL`, table).Scan(&present)
		if err != nil {
			return fmt.Errorf("failed to inspect schema: %w", err)
		}
		if !present {
			return fmt.Errorf("%w (table %q)", ErrSchemaMissing, table)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the pool. It always returns nil and exists to satisfy service.Store.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Pool exposes the pool to integration tests that manage the schema.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
