package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Storage-level sentinel errors. Handlers map these onto HTTP status codes.
var (
	ErrNotFound           = errors.New("db: not found")
	ErrProjectNotOpen     = errors.New("db: project is not open")
	ErrDuplicateActiveBid = errors.New("db: seller already has a pending bid on this project")
	ErrBidNotPending      = errors.New("db: bid is not pending")
	ErrEmptyCart          = errors.New("db: cart is empty")
	ErrCartAlreadyOrdered = errors.New("db: cart was already converted to an order")
	ErrStaleStatus        = errors.New("db: status changed concurrently")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func Connect(connString string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return conn, nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
