package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pechdavin/go-shop-backend/internal/cart"
	"github.com/pechdavin/go-shop-backend/internal/checkout"
	"github.com/pechdavin/go-shop-backend/internal/config"
	"github.com/pechdavin/go-shop-backend/internal/httpx"
	"github.com/pechdavin/go-shop-backend/internal/inventory"
	kafkax "github.com/pechdavin/go-shop-backend/internal/kafka"
	"github.com/pechdavin/go-shop-backend/internal/logging"
	"github.com/pechdavin/go-shop-backend/internal/orders"
	"github.com/pechdavin/go-shop-backend/internal/postgres"
	"github.com/pechdavin/go-shop-backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNew(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prod.Start(ctx)

	cartStore := &cart.Store{DB: db}
	orderStore := &orders.Store{DB: db}
	ledger := &inventory.Ledger{DB: db}

	co := &checkout.Service{
		Carts:               cartStore,
		Ledger:              ledger,
		Orders:              orderStore,
		Log:                 log,
		AllowCartIDCheckout: cfg.AllowCartIDCheckout,
	}

	router := httpx.NewRouter(httpx.PassthroughResolver)
	(&httpx.CartHandler{Service: &cart.Service{Store: cartStore}}).Register(router)
	(&httpx.OrdersHandler{
		Checkout: co,
		Orders:   orderStore,
		Redis:    rdb,
		Producer: prod,
		Service:  cfg.ServiceName,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	prod.Close() // flush queued events, then exit the loop
	prod.WaitClosed()
}
