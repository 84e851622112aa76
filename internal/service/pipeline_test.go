package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/store"
)

// memLedger is an in-memory stand-in for the postgres store. It mirrors the
// store's atomicity contract closely enough to exercise the pipeline:
// reservations and settlement commits happen under one lock, and the
// terminal-status guard is re-checked inside that critical section.
type memLedger struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	txs      map[uuid.UUID]*domain.Transaction
	events   []domain.StatusEvent
	outbox   []domain.SettlementIntent
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts: make(map[int64]*domain.Account),
		txs:      make(map[uuid.UUID]*domain.Transaction),
	}
}

func (m *memLedger) addAccount(id int64, name, balance string) {
	m.accounts[id] = &domain.Account{
		ID:      id,
		Name:    name,
		Balance: decimal.RequireFromString(balance),
	}
}

func (m *memLedger) balance(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

func (m *memLedger) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memLedger) Reserve(_ context.Context, sourceID, destID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.accounts[sourceID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if _, ok := m.accounts[destID]; !ok {
		return nil, store.ErrAccountNotFound
	}
	if source.Balance.LessThan(amount) {
		return nil, store.ErrInsufficientFunds
	}

	source.Balance = source.Balance.Sub(amount)

	tx := &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: sourceID,
		DestAccountID:   destID,
		Amount:          amount,
		CreatedAt:       time.Now(),
	}
	m.txs[tx.ID] = tx
	m.appendEvent(tx.ID, domain.StatusPending)
	m.outbox = append(m.outbox, domain.SettlementIntent{
		TransactionID: tx.ID,
		SrcID:         sourceID,
		DestID:        destID,
		Amount:        amount,
	})
	return tx, nil
}

func (m *memLedger) StatusHistory(_ context.Context, transactionID uuid.UUID) ([]domain.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyLocked(transactionID), nil
}

func (m *memLedger) MarkProcessing(_ context.Context, transactionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.historyLocked(transactionID) {
		if e.Status == domain.StatusProcessing {
			return nil
		}
	}
	m.appendEvent(transactionID, domain.StatusProcessing)
	return nil
}

func (m *memLedger) CommitSettlement(_ context.Context, intent domain.SettlementIntent, outcome domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txs[intent.TransactionID]; !ok {
		return fmt.Errorf("settlement for unknown transaction %s", intent.TransactionID)
	}
	for _, e := range m.historyLocked(intent.TransactionID) {
		if e.Status.Terminal() {
			return store.ErrAlreadySettled
		}
	}

	credit := intent.DestID
	if outcome == domain.StatusRejected {
		credit = intent.SrcID
	}
	m.accounts[credit].Balance = m.accounts[credit].Balance.Add(intent.Amount)
	m.appendEvent(intent.TransactionID, outcome)
	return nil
}

func (m *memLedger) historyLocked(transactionID uuid.UUID) []domain.StatusEvent {
	var events []domain.StatusEvent
	for _, e := range m.events {
		if e.TransactionID == transactionID {
			events = append(events, e)
		}
	}
	return events
}

func (m *memLedger) appendEvent(transactionID uuid.UUID, status domain.Status) {
	m.events = append(m.events, domain.StatusEvent{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Status:        status,
		CreatedAt:     time.Now(),
	})
}
