package worker

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/queue"
)

var (
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_worker_deliveries_total",
		Help: "Settlement deliveries processed, labeled by result",
	}, []string{"result"})
)

// Settler resolves one settlement intent; nil means the outcome is durably
// committed and the delivery may be acked.
type Settler interface {
	Settle(ctx context.Context, intent domain.SettlementIntent) error
}

// Consumer yields settlement-intent deliveries from the durable channel.
type Consumer interface {
	Consume(ctx context.Context) (<-chan queue.Delivery, error)
}

// Worker is the consuming half of the pipeline: it pulls intents off the
// channel, settles them, and acknowledges only after the settlement commit
// is durable. Concurrency is bounded by the channel's prefetch limit, not
// by anything here.
type Worker struct {
	consumer Consumer
	settler  Settler
	log      *zap.Logger
}

func New(consumer Consumer, settler Settler, log *zap.Logger) *Worker {
	return &Worker{consumer: consumer, settler: settler, log: log}
}

// Run consumes deliveries until ctx is cancelled or the delivery stream
// closes. Each delivery is settled on its own goroutine; the broker's
// prefetch window caps how many run at once.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	w.log.Info("settlement worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("settlement worker stopped")
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				w.log.Info("delivery stream closed")
				return nil
			}
			go w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d queue.Delivery) {
	intent, err := queue.DecodeIntent(d.Body)
	if err != nil {
		// Malformed payloads can never settle; requeueing would loop forever.
		w.log.Error("dropping malformed intent", zap.Error(err))
		settlementsTotal.WithLabelValues("malformed").Inc()
		if err := d.Nack(false); err != nil {
			w.log.Warn("nack failed", zap.Error(err))
		}
		return
	}

	if err := w.settler.Settle(ctx, intent); err != nil {
		w.log.Warn("settlement attempt failed, requeueing",
			zap.String("transaction_id", intent.TransactionID.String()),
			zap.Error(err))
		settlementsTotal.WithLabelValues("requeued").Inc()
		if err := d.Nack(true); err != nil {
			w.log.Warn("nack failed", zap.Error(err))
		}
		return
	}

	// Only now is the message done: the terminal commit is durable. A crash
	// before this ack causes a redelivery the settler skips over.
	if err := d.Ack(); err != nil {
		w.log.Warn("ack failed, broker will redeliver",
			zap.String("transaction_id", intent.TransactionID.String()),
			zap.Error(err))
		return
	}
	settlementsTotal.WithLabelValues("settled").Inc()
}
