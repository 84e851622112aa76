package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wallseat/payment-transaction-model/internal/domain"
)

// Reserve atomically debits the source account, records the transaction,
// appends its pending status event, and stages the settlement intent in the
// outbox. Either all four happen or none do. The source row is locked for
// the duration of the balance check so two concurrent reservations cannot
// both pass it.
func (s *Store) Reserve(ctx context.Context, sourceID, destID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	source, err := scanAccount(tx.QueryRow(ctx,
		"SELECT id, name, balance::text, created_at FROM accounts WHERE id = $1 FOR UPDATE", sourceID))
	if err != nil {
		return nil, err
	}

	// Destination is only credited much later, by the worker; existence is
	// all that matters here, no lock needed.
	var destExists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", destID).Scan(&destExists); err != nil {
		return nil, fmt.Errorf("destination lookup failed: %w", err)
	}
	if !destExists {
		return nil, ErrAccountNotFound
	}

	if source.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = balance - $1 WHERE id = $2",
		amount.String(), sourceID); err != nil {
		return nil, fmt.Errorf("debit failed: %w", err)
	}

	transaction := &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: sourceID,
		DestAccountID:   destID,
		Amount:          amount,
		CreatedAt:       time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO transactions (id, source_account_id, dest_account_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)",
		transaction.ID, sourceID, destID, amount.String(), transaction.CreatedAt); err != nil {
		return nil, fmt.Errorf("transaction insert failed: %w", err)
	}

	if err := appendStatusEvent(ctx, tx, transaction.ID, domain.StatusPending); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO outbox (transaction_id, src_id, dest_id, amount) VALUES ($1, $2, $3, $4)",
		transaction.ID, sourceID, destID, amount.String()); err != nil {
		return nil, fmt.Errorf("outbox insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}

	return transaction, nil
}

// CommitSettlement applies the terminal outcome of a settlement: credit the
// destination on approval, refund the source on rejection, and append the
// terminal status event, all in one database transaction. The transaction
// row is locked first and the history re-checked under that lock, so a
// concurrent redelivery observes ErrAlreadySettled instead of re-crediting.
func (s *Store) CommitSettlement(ctx context.Context, intent domain.SettlementIntent, outcome domain.Status) error {
	if !outcome.Terminal() {
		return fmt.Errorf("non-terminal settlement outcome %q", outcome)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx,
		"SELECT id FROM transactions WHERE id = $1 FOR UPDATE",
		intent.TransactionID).Scan(&lockedID)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("settlement for unknown transaction %s", intent.TransactionID)
	}
	if err != nil {
		return fmt.Errorf("transaction lock failed: %w", err)
	}

	var settled bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM status_events WHERE transaction_id = $1 AND status IN ($2, $3))",
		intent.TransactionID, domain.StatusApproved, domain.StatusRejected).Scan(&settled); err != nil {
		return fmt.Errorf("terminal status check failed: %w", err)
	}
	if settled {
		return ErrAlreadySettled
	}

	creditAccount := intent.DestID
	if outcome == domain.StatusRejected {
		creditAccount = intent.SrcID
	}

	if _, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE id = $2",
		intent.Amount.String(), creditAccount); err != nil {
		return fmt.Errorf("credit failed: %w", err)
	}

	if err := appendStatusEvent(ctx, tx, intent.TransactionID, outcome); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}

	return nil
}

// MarkProcessing appends the processing status event, unless one already
// exists for the transaction. Redeliveries therefore leave the history with
// a single processing entry.
func (s *Store) MarkProcessing(ctx context.Context, transactionID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO status_events (id, transaction_id, status)
		 SELECT $1, $2, $3
		 WHERE NOT EXISTS (SELECT 1 FROM status_events WHERE transaction_id = $2 AND status = $3)`,
		uuid.New(), transactionID, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("status insert failed: %w", err)
	}
	return nil
}

// StatusHistory returns the transaction's status events ordered oldest first.
func (s *Store) StatusHistory(ctx context.Context, transactionID uuid.UUID) ([]domain.StatusEvent, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, transaction_id, status, created_at FROM status_events WHERE transaction_id = $1 ORDER BY created_at",
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("status history query failed: %w", err)
	}
	defer rows.Close()

	var events []domain.StatusEvent
	for rows.Next() {
		var e domain.StatusEvent
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetTransaction retrieves a transaction record.
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var (
		t      domain.Transaction
		amount string
	)
	err := s.db.QueryRow(ctx,
		"SELECT id, source_account_id, dest_account_id, amount::text, created_at FROM transactions WHERE id = $1",
		id).Scan(&t.ID, &t.SourceAccountID, &t.DestAccountID, &amount, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("malformed amount for transaction %s: %w", id, err)
	}
	return &t, nil
}

func appendStatusEvent(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, status domain.Status) error {
	if _, err := tx.Exec(ctx,
		"INSERT INTO status_events (id, transaction_id, status) VALUES ($1, $2, $3)",
		uuid.New(), transactionID, status); err != nil {
		return fmt.Errorf("status insert failed: %w", err)
	}
	return nil
}
