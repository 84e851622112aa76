package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/config"
	"github.com/wallseat/payment-transaction-model/internal/decision"
	"github.com/wallseat/payment-transaction-model/internal/queue"
	"github.com/wallseat/payment-transaction-model/internal/service"
	"github.com/wallseat/payment-transaction-model/internal/store"
	"github.com/wallseat/payment-transaction-model/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer ledger.Close()

	channel, err := queue.Dial(cfg.RabbitMQDSN, cfg.TransactionsQueue, cfg.PrefetchCount)
	if err != nil {
		logger.Fatal("broker connection failed", zap.Error(err))
	}
	defer channel.Close()

	decider := decision.Random{MinDelay: 3 * time.Second, MaxDelay: 10 * time.Second}
	settler := service.NewSettler(ledger, decider, cfg.DecisionTimeout, logger)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
			logger.Warn("metrics server failed", zap.Error(err))
		}
	}()

	w := worker.New(channel, settler, logger)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("worker failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
