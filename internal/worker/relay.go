// Package worker relays committed outbox entries to Redis Streams.
package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/outbox"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, stream string, entry *outbox.Entry) (string, error)
}

type RelayConfig struct {
	BatchSize           int
	PollInterval        time.Duration
	EventsStream        string
	NotificationsStream string
	PublishedRetention  time.Duration
}

// Relay moves pending outbox entries to the events stream, or to the
// notifications stream for notification.* entries.
type Relay struct {
	txManager TransactionManager
	repo      outbox.Repository
	publisher Publisher
	cfg       RelayConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRelay(txManager TransactionManager, repo outbox.Repository, publisher Publisher, cfg RelayConfig, metrics *observability.Metrics, logger zerolog.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.EventsStream == "" {
		cfg.EventsStream = "events:payments"
	}
	if cfg.NotificationsStream == "" {
		cfg.NotificationsStream = "notifications:outbound"
	}
	return &Relay{
		txManager: txManager,
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With().Str("component", "outbox_relay").Logger(),
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were published.
// Entries stay locked by the surrounding transaction until their status is
// written back.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	start := r.now()
	published := 0

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.repo.GetPending(txCtx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			stream := r.streamFor(entry)
			if _, err := r.publisher.Publish(ctx, stream, entry); err != nil {
				r.logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Str("event_type", entry.EventType).Msg("Failed to publish outbox entry")
				r.count(stream, "failure")
				if err := r.repo.MarkFailed(txCtx, entry.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := r.repo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.count(stream, "success")
			published++
		}
		return nil
	})

	if r.metrics != nil {
		r.metrics.OutboxRelayDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, err
	}
	if published > 0 {
		r.logger.Debug().Int("published", published).Msg("Outbox batch relayed")
	}
	return published, nil
}

// RunPurge deletes published entries older than the retention once per interval.
func (r *Relay) RunPurge(ctx context.Context, interval time.Duration) error {
	if r.cfg.PublishedRetention <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n, err := r.repo.PurgePublished(ctx, r.now().Add(-r.cfg.PublishedRetention))
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to purge published outbox entries")
			continue
		}
		if n > 0 {
			r.logger.Info().Int64("purged", n).Msg("Purged published outbox entries")
		}
	}
}

func (r *Relay) streamFor(entry *outbox.Entry) string {
	if entry.IsNotification() {
		return r.cfg.NotificationsStream
	}
	return r.cfg.EventsStream
}

func (r *Relay) count(stream, result string) {
	if r.metrics != nil {
		r.metrics.OutboxEntriesRelayed.WithLabelValues(stream, result).Inc()
	}
}
