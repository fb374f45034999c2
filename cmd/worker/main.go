package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/creditshop/internal/bootstrap"
	infraRedis "github.com/cassiomorais/creditshop/internal/infrastructure/redis"
	"github.com/cassiomorais/creditshop/internal/repository/postgres"
	"github.com/cassiomorais/creditshop/internal/worker"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "creditshop-worker", "creditshop_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	workerCfg := app.Config.Worker
	relay := worker.NewRelay(
		postgres.NewTxManager(app.Pool),
		postgres.NewOutboxRepository(app.Pool),
		infraRedis.NewStreamPublisher(app.Redis, workerCfg.StreamMaxLen),
		worker.RelayConfig{
			BatchSize:           workerCfg.BatchSize,
			PollInterval:        workerCfg.OutboxPollInterval,
			EventsStream:        workerCfg.EventsStream,
			NotificationsStream: workerCfg.NotificationsStream,
			PublishedRetention:  workerCfg.PublishedRetention,
		},
		app.Metrics,
		app.Logger,
	)

	app.Logger.Info().
		Str("events_stream", workerCfg.EventsStream).
		Str("notifications_stream", workerCfg.NotificationsStream).
		Msg("Outbox relay started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Run(gCtx)
	})

	g.Go(func() error {
		return relay.RunPurge(gCtx, time.Hour)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
