package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/db"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/inventory"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/store"
)

const sweepLockKey = "pos:worker:reservation-sweep"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := db.NewPool(initCtx, cfg.DatabaseURL, "pos-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(initCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	queries := store.New(pool)
	bus := &events.Bus{Store: queries}

	inventorySvc := &inventory.Service{
		Pool:           pool,
		Events:         bus,
		ReservationTTL: cfg.ReservationTTL,
	}
	locker := lock.Locker{R: redisClient}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	logger.Info().Dur("interval", interval).Msg("reservation sweeper starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker shutdown complete")
			return
		case <-ticker.C:
			err := locker.TryLock(ctx, sweepLockKey, interval, func(lockCtx context.Context) error {
				swept, err := inventorySvc.ExpireReservations(lockCtx)
				if err != nil {
					return err
				}
				if swept > 0 {
					logger.Info().Int("count", swept).Msg("expired reservations swept")
				}
				return nil
			})
			if err != nil && !errors.Is(err, lock.ErrNotAcquired) && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("sweep reservations")
			}
		}
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
