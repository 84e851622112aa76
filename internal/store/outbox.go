package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wallseat/payment-transaction-model/internal/domain"
)

// ClaimOutbox picks up to limit undispatched settlement intents and bumps
// their attempt counters. Rows locked by another dispatcher are skipped, so
// multiple dispatchers never fight over the same intent. Claimed rows stay
// in the outbox until MarkDispatched confirms the publish; a crash between
// the two just means the intent is claimed again on a later poll.
func (s *Store) ClaimOutbox(ctx context.Context, limit int) ([]domain.SettlementIntent, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_attempt_at = now()
		 WHERE transaction_id IN (
		     SELECT transaction_id FROM outbox
		     WHERE dispatched_at IS NULL
		     ORDER BY created_at
		     LIMIT $1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING transaction_id, src_id, dest_id, amount::text`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("outbox claim failed: %w", err)
	}
	defer rows.Close()

	var intents []domain.SettlementIntent
	for rows.Next() {
		var (
			intent domain.SettlementIntent
			amount string
		)
		if err := rows.Scan(&intent.TransactionID, &intent.SrcID, &intent.DestID, &amount); err != nil {
			return nil, err
		}
		if intent.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("malformed amount in outbox for %s: %w", intent.TransactionID, err)
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// MarkDispatched records that the intent was accepted by the broker. Called
// only after the publisher confirm, so an unconfirmed publish is retried.
func (s *Store) MarkDispatched(ctx context.Context, transactionID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"UPDATE outbox SET dispatched_at = now() WHERE transaction_id = $1",
		transactionID)
	if err != nil {
		return fmt.Errorf("outbox update failed: %w", err)
	}
	return nil
}

// PendingOutboxDepth counts intents not yet confirmed published. Exposed for
// the stuck-settlement gauge.
func (s *Store) PendingOutboxDepth(ctx context.Context) (int64, error) {
	var depth int64
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM outbox WHERE dispatched_at IS NULL").Scan(&depth)
	return depth, err
}
