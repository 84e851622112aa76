package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/api"
	"github.com/wallseat/payment-transaction-model/internal/config"
	"github.com/wallseat/payment-transaction-model/internal/outbox"
	"github.com/wallseat/payment-transaction-model/internal/queue"
	"github.com/wallseat/payment-transaction-model/internal/service"
	"github.com/wallseat/payment-transaction-model/internal/store"
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

	dispatcher := outbox.NewDispatcher(ledger, channel, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	go dispatcher.Run(ctx)

	initiator := service.NewInitiator(ledger, logger)
	handler := api.NewHandler(ledger, initiator, logger)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Register(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("transaction api listening", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
