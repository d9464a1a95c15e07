package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payments"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	name := cfg.ServiceName + "-payments"
	log, err := logging.New(name, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Payment results never notify, so the service runs without a producer.
	cat := catalog.NewRepo(db)
	svc := fulfillment.NewService(fulfillment.NewPgStore(db), cat, cat, nil, log.Named("fulfillment"))

	h := &payments.Handler{
		Orders: svc,
		Dedup:  redisx.NewDedup(rdb, name),
		Log:    log.Named("handler"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers(), cfg.PaymentsGroup, orders.TopicPaymentResult, cfg.PaymentsWorkers, log.Named("consumer"))

	log.Info("payments consumer started",
		zap.String("group", cfg.PaymentsGroup),
		zap.String("topic", orders.TopicPaymentResult),
		zap.Int("workers", cfg.PaymentsWorkers))
	if err := cons.Start(ctx, h.Handle); err != nil {
		log.Error("consumer exit", zap.Error(err))
		return
	}
	log.Info("payments consumer stopped")
}
