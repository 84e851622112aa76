package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/domain"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_outbox_published_total",
		Help: "Settlement intents confirmed by the broker, labeled by result",
	}, []string{"result"})

	outboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_outbox_pending",
		Help: "Settlement intents not yet confirmed published",
	})
)

// Publisher hands an intent to the durable channel. A nil return must mean
// the broker durably owns the message.
type Publisher interface {
	Publish(ctx context.Context, intent domain.SettlementIntent) error
}

// Store is the slice of the ledger store the dispatcher needs.
type Store interface {
	ClaimOutbox(ctx context.Context, limit int) ([]domain.SettlementIntent, error)
	MarkDispatched(ctx context.Context, transactionID uuid.UUID) error
	PendingOutboxDepth(ctx context.Context) (int64, error)
}

// Dispatcher drains the transactional outbox: intents recorded atomically
// with a reservation are published until the broker confirms them. A crash
// anywhere in the loop only ever causes a duplicate publish, which the
// worker's idempotency guard absorbs; an intent is never lost.
type Dispatcher struct {
	store    Store
	pub      Publisher
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewDispatcher(store Store, pub Publisher, interval time.Duration, batch int, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, pub: pub, interval: interval, batch: batch, log: log}
}

// Run polls the outbox until ctx is cancelled. Failed publishes stay in the
// outbox; the poll interval is the retry backoff.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("outbox dispatcher started", zap.Duration("interval", d.interval))

	for {
		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if n, err := d.DrainOnce(ctx); err != nil {
				d.log.Warn("outbox drain failed", zap.Error(err))
			} else if n > 0 {
				d.log.Debug("outbox drained", zap.Int("published", n))
			}

			if depth, err := d.store.PendingOutboxDepth(ctx); err == nil {
				outboxDepth.Set(float64(depth))
			}
		}
	}
}

// DrainOnce claims a batch of undispatched intents and publishes each one,
// marking it dispatched only after the broker confirm. Returns the number
// of confirmed publishes.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	intents, err := d.store.ClaimOutbox(ctx, d.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, intent := range intents {
		if err := d.pub.Publish(ctx, intent); err != nil {
			publishedTotal.WithLabelValues("error").Inc()
			d.log.Warn("intent publish failed, will retry",
				zap.String("transaction_id", intent.TransactionID.String()),
				zap.Error(err))
			continue
		}

		if err := d.store.MarkDispatched(ctx, intent.TransactionID); err != nil {
			// The publish stands; the row is republished next poll and the
			// duplicate is absorbed downstream.
			d.log.Warn("dispatched mark failed",
				zap.String("transaction_id", intent.TransactionID.String()),
				zap.Error(err))
			continue
		}

		publishedTotal.WithLabelValues("ok").Inc()
		published++
	}
	return published, nil
}
