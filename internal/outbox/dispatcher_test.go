package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/outbox"
)

type memOutbox struct {
	mu         sync.Mutex
	pending    []domain.SettlementIntent
	dispatched map[uuid.UUID]bool
	attempts   map[uuid.UUID]int
}

func newMemOutbox(intents ...domain.SettlementIntent) *memOutbox {
	return &memOutbox{
		pending:    intents,
		dispatched: make(map[uuid.UUID]bool),
		attempts:   make(map[uuid.UUID]int),
	}
}

func (m *memOutbox) ClaimOutbox(_ context.Context, limit int) ([]domain.SettlementIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []domain.SettlementIntent
	for _, intent := range m.pending {
		if len(claimed) == limit {
			break
		}
		if !m.dispatched[intent.TransactionID] {
			m.attempts[intent.TransactionID]++
			claimed = append(claimed, intent)
		}
	}
	return claimed, nil
}

func (m *memOutbox) MarkDispatched(_ context.Context, transactionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched[transactionID] = true
	return nil
}

func (m *memOutbox) PendingOutboxDepth(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var depth int64
	for _, intent := range m.pending {
		if !m.dispatched[intent.TransactionID] {
			depth++
		}
	}
	return depth, nil
}

type stubPublisher struct {
	mu        sync.Mutex
	failUntil int // fail the first N publishes
	published []uuid.UUID
}

func (p *stubPublisher) Publish(_ context.Context, intent domain.SettlementIntent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failUntil > 0 {
		p.failUntil--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, intent.TransactionID)
	return nil
}

func someIntent() domain.SettlementIntent {
	return domain.SettlementIntent{
		TransactionID: uuid.New(),
		SrcID:         1,
		DestID:        2,
		Amount:        decimal.RequireFromString("10.00"),
	}
}

func TestDrainOncePublishesAndMarks(t *testing.T) {
	a, b := someIntent(), someIntent()
	store := newMemOutbox(a, b)
	pub := &stubPublisher{}

	d := outbox.NewDispatcher(store, pub, time.Second, 100, zap.NewNop())

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []uuid.UUID{a.TransactionID, b.TransactionID}, pub.published)
	assert.True(t, store.dispatched[a.TransactionID])
	assert.True(t, store.dispatched[b.TransactionID])
}

func TestDrainOnceRetriesFailedPublish(t *testing.T) {
	intent := someIntent()
	store := newMemOutbox(intent)
	pub := &stubPublisher{failUntil: 1}

	d := outbox.NewDispatcher(store, pub, time.Second, 100, zap.NewNop())

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, store.dispatched[intent.TransactionID], "unconfirmed intent must stay in the outbox")

	// Next poll picks the same row up again.
	n, err = d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, store.dispatched[intent.TransactionID])
	assert.Equal(t, 2, store.attempts[intent.TransactionID])
}

func TestDrainOnceHonorsBatchLimit(t *testing.T) {
	store := newMemOutbox(someIntent(), someIntent(), someIntent())
	pub := &stubPublisher{}

	d := outbox.NewDispatcher(store, pub, time.Second, 2, zap.NewNop())

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	depth, err := store.PendingOutboxDepth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}
