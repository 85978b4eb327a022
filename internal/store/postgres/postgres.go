// Package postgres implements the engine's storage ports on PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// Store implements domain.CounterStore, domain.PhotoStore,
// domain.AccountStore and domain.ContentStore.
type Store struct {
	db *pgxpool.Pool
}

// New returns a Store using db.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// noRecord maps pgx's missing-row error onto the port's sentinel.
func noRecord(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNoRecord
	}
	return err
}
