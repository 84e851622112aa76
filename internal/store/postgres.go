package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wallseat/payment-transaction-model/internal/domain"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadySettled    = errors.New("transaction already settled")
)

// Store is the durable ledger: accounts, transactions, the append-only
// status history, and the settlement outbox. All multi-row mutations run
// inside a single database transaction.
type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{db: pool}, nil
}

// NewWithPool wraps an existing pool; the caller keeps ownership of it.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func (s *Store) Close() {
	s.db.Close()
}

// GetAccount retrieves a single account by ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(s.db.QueryRow(ctx,
		"SELECT id, name, balance::text, created_at FROM accounts WHERE id = $1", id))
}

// CreateAccount creates a new account with the given opening balance.
func (s *Store) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		"INSERT INTO accounts (name, balance) VALUES ($1, $2) RETURNING id",
		name, balance.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("account insert failed: %w", err)
	}
	return id, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanAccount(r row) (*domain.Account, error) {
	var (
		acc     domain.Account
		balance string
	)
	err := r.Scan(&acc.ID, &acc.Name, &balance, &acc.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if acc.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("malformed balance for account %d: %w", acc.ID, err)
	}
	return &acc, nil
}
