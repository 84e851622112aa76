package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/decision"
	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/store"
)

// SettlementLedger is the slice of the store the settler needs.
type SettlementLedger interface {
	StatusHistory(ctx context.Context, transactionID uuid.UUID) ([]domain.StatusEvent, error)
	MarkProcessing(ctx context.Context, transactionID uuid.UUID) error
	CommitSettlement(ctx context.Context, intent domain.SettlementIntent, outcome domain.Status) error
}

// Settler resolves settlement intents into terminal outcomes. Settle is
// safe to call any number of times for the same intent: redeliveries after
// a terminal event are absorbed without touching balances.
type Settler struct {
	ledger  SettlementLedger
	decider decision.Decider
	timeout time.Duration
	log     *zap.Logger
}

func NewSettler(ledger SettlementLedger, decider decision.Decider, timeout time.Duration, log *zap.Logger) *Settler {
	return &Settler{ledger: ledger, decider: decider, timeout: timeout, log: log}
}

// Settle runs one settlement attempt. A nil return means the transaction
// has a terminal status durably committed (by this attempt or an earlier
// one) and the message may be acked. Any error means the caller must leave
// the message unacked for redelivery.
func (s *Settler) Settle(ctx context.Context, intent domain.SettlementIntent) error {
	history, err := s.ledger.StatusHistory(ctx, intent.TransactionID)
	if err != nil {
		return fmt.Errorf("status history read failed: %w", err)
	}

	if hasTerminal(history) {
		s.log.Info("redelivery of settled transaction, skipping",
			zap.String("transaction_id", intent.TransactionID.String()))
		return nil
	}

	// Audit marker only; correctness rests on the terminal-commit guard.
	if !hasStatus(history, domain.StatusProcessing) {
		if err := s.ledger.MarkProcessing(ctx, intent.TransactionID); err != nil {
			return fmt.Errorf("processing mark failed: %w", err)
		}
	}

	// No lock is held here: the decision may block for a long time.
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := s.decider.Decide(dctx, intent)
	if err != nil {
		return fmt.Errorf("decision failed: %w", err)
	}

	var terminal domain.Status
	switch outcome {
	case decision.Approve:
		terminal = domain.StatusApproved
	case decision.Reject:
		terminal = domain.StatusRejected
	default:
		return fmt.Errorf("unknown decision outcome %q", outcome)
	}

	err = s.ledger.CommitSettlement(ctx, intent, terminal)
	if errors.Is(err, store.ErrAlreadySettled) {
		// Concurrent redelivery won the race; its commit stands.
		s.log.Info("settlement already committed by concurrent delivery",
			zap.String("transaction_id", intent.TransactionID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("settlement commit failed: %w", err)
	}

	s.log.Info("settled transaction",
		zap.String("transaction_id", intent.TransactionID.String()),
		zap.String("outcome", string(terminal)),
	)
	return nil
}

func hasTerminal(history []domain.StatusEvent) bool {
	for _, e := range history {
		if e.Status.Terminal() {
			return true
		}
	}
	return false
}

func hasStatus(history []domain.StatusEvent, status domain.Status) bool {
	for _, e := range history {
		if e.Status == status {
			return true
		}
	}
	return false
}
