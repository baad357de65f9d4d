package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ornamenta/jewelstore/internal/config"
	kafkax "github.com/ornamenta/jewelstore/internal/kafka"
	"github.com/ornamenta/jewelstore/internal/logging"
	"github.com/ornamenta/jewelstore/internal/orders"
	"github.com/ornamenta/jewelstore/internal/redisx"
	"github.com/ornamenta/jewelstore/internal/statuscache"
)

const consumerGroup = "jewelstore-status-cache"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logging.Must("jewelstore-worker")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	svc := &statuscache.Service{Redis: rdb, Log: log, Name: "status-cache"}

	topics := []string{
		orders.TopicOrderCreated,
		orders.TopicOrderStatusChanged,
		orders.TopicOrderCancelled,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		c := kafkax.NewConsumer(log, cfg.KafkaBrokers, consumerGroup, topic, 4)
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			log.Info("consumer started", zap.String("topic", topic))
			if err := c.Start(ctx, svc.HandleEvent); err != nil {
				log.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
				stop()
			}
		}(topic)
	}

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	log.Info("stopped")
}
