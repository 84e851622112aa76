package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/store"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAccountNotFound   = store.ErrAccountNotFound
	ErrInsufficientFunds = store.ErrInsufficientFunds
)

// Ledger is the slice of the store the initiator needs.
type Ledger interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	Reserve(ctx context.Context, sourceID, destID int64, amount decimal.Decimal) (*domain.Transaction, error)
}

// Initiator validates transfer requests and reserves funds. The reservation
// debits the source and stages the settlement intent in the outbox in one
// atomic unit; the outbox dispatcher takes it from there. Nothing here ever
// credits an account.
type Initiator struct {
	ledger Ledger
	log    *zap.Logger
}

func NewInitiator(ledger Ledger, log *zap.Logger) *Initiator {
	return &Initiator{ledger: ledger, log: log}
}

// Initiate reserves amount from source for transfer to dest and schedules
// its settlement. Validation failures return before any state is touched.
func (i *Initiator) Initiate(ctx context.Context, amount decimal.Decimal, sourceID, destID int64) (*domain.TransactionInfo, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	dest, err := i.ledger.GetAccount(ctx, destID)
	if err != nil {
		return nil, err
	}

	transaction, err := i.ledger.Reserve(ctx, sourceID, destID, amount)
	if err != nil {
		return nil, err
	}

	i.log.Info("reserved transfer",
		zap.String("transaction_id", transaction.ID.String()),
		zap.Int64("source_id", sourceID),
		zap.Int64("dest_id", destID),
		zap.String("amount", amount.String()),
	)

	return &domain.TransactionInfo{
		Destination: dest.Name,
		Status:      domain.StatusPending,
		Amount:      amount,
	}, nil
}
