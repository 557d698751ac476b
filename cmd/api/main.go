package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-inventory-orders/internal/auth"
	"github.com/ariefcatur/go-inventory-orders/internal/config"
	"github.com/ariefcatur/go-inventory-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-inventory-orders/internal/kafka"
	"github.com/ariefcatur/go-inventory-orders/internal/logging"
	"github.com/ariefcatur/go-inventory-orders/internal/metrics"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/postgres"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	producerCtx, stopProducers := context.WithCancel(context.Background())
	defer stopProducers()
	pCreated.Start(producerCtx)
	pCancelled.Start(producerCtx)

	m := metrics.New()
	jwt := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	staff := auth.RequireStaff(jwt)

	router := httpx.NewRouter(m)
	(&httpx.OrdersHandler{
		Orders:    &orders.Repo{DB: db},
		Cache:     &redisx.Cache{RDB: rdb, ViewTTL: cfg.OrderCacheTTL, IdempotencyTTL: cfg.IdempotencyTTL},
		Created:   pCreated,
		Cancelled: pCancelled,
		Metrics:   m,
		Service:   cfg.ServiceName,
	}).Register(router, staff)
	(&httpx.ProductsHandler{Products: &orders.ProductRepo{DB: db}}).Register(router, staff)
	(&httpx.AuthHandler{Accounts: &auth.AccountRepo{DB: db}, JWT: jwt}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server exited")
	}

	// handlers are done; flush whatever is still queued
	pCreated.Close()
	pCancelled.Close()
	pCreated.WaitClosed()
	pCancelled.WaitClosed()
}
