package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdavid109/UpWake/internal/cache"
	"github.com/kdavid109/UpWake/internal/config"
	"github.com/kdavid109/UpWake/internal/database"
	"github.com/kdavid109/UpWake/internal/livelist"
	"github.com/kdavid109/UpWake/internal/log"
	"github.com/kdavid109/UpWake/internal/queue"
	"github.com/kdavid109/UpWake/internal/removal"
	"github.com/kdavid109/UpWake/internal/repository"
	"github.com/kdavid109/UpWake/internal/storage"
	"github.com/kdavid109/UpWake/internal/tasks"
)

const claimInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	processor := tasks.NewProcessor(
		repository.NewObjectRepository(dbPool),
		objectStore,
		removal.NewClient(cfg.Removal),
		livelist.NewHub(redisClient, logger),
		cfg.Storage.URLTTL,
		logger,
	)

	consumer := queue.NewConsumer(
		redisClient,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		claimInterval,
		logger,
		processor,
	)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure consumer group failed")
	}

	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}
