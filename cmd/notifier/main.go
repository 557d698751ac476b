package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-inventory-orders/internal/config"
	kafkax "github.com/ariefcatur/go-inventory-orders/internal/kafka"
	"github.com/ariefcatur/go-inventory-orders/internal/logging"
	"github.com/ariefcatur/go-inventory-orders/internal/notification"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadBase()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	h := &notification.Handler{Redis: rdb, ServiceName: cfg.ServiceName + "-notifier"}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicOrderCancelled} {
		topic := topic
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topic, cfg.NotifierWorkers)
		g.Go(func() error {
			log.WithFields(log.Fields{
				"group": cfg.NotifierGroup, "topic": topic, "workers": cfg.NotifierWorkers,
			}).Info("notifier consumer started")
			return cons.Start(gctx, h.HandleMessage)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("consumer exit")
	}
	log.Info("notifier stopped")
}
