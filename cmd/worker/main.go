// Worker consumes order.created events and warms the redis order read-cache,
// so GET /api/orders/{id} stays hot across api instances.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pechdavin/go-shop-backend/internal/config"
	kafkax "github.com/pechdavin/go-shop-backend/internal/kafka"
	"github.com/pechdavin/go-shop-backend/internal/logging"
	"github.com/pechdavin/go-shop-backend/internal/orders"
	"github.com/pechdavin/go-shop-backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNew(cfg.ServiceName+"-worker", cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	group := getenv("ORDER_CACHE_GROUP", "order-cache")
	workers := atoi(os.Getenv("ORDER_CACHE_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCreated, workers, log)

	h := &cacheWarmer{redis: rdb, log: log}

	go func() {
		log.Info("consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicOrderCreated),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, h.handle); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
}

type cacheWarmer struct {
	redis *redis.Client
	log   *zap.Logger
}

func (c *cacheWarmer) handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	// dedup by event id so replays do not churn the cache
	dkey := fmt.Sprintf(redisx.KeyDedup, "order-cache", env.EventID)
	if exists, _ := redisx.Exists(ctx, c.redis, dkey); exists {
		return nil
	}
	_ = c.redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	b, err := json.Marshal(p.Order)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyOrder, p.Order.ID)
	if err := c.redis.Set(ctx, key, b, redisx.TTLOrderCache).Err(); err != nil {
		return err
	}
	c.log.Info("order cached", zap.String("order_id", p.Order.ID))
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
