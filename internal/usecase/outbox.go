package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/port"
)

const (
	defaultOutboxBatchSize    = 100
	defaultOutboxPollInterval = time.Second
)

// RelayMetrics records outbox relay outcomes.
type RelayMetrics interface {
	EventRelayed(eventType string, ok bool)
}

type noopRelayMetrics struct{}

func (noopRelayMetrics) EventRelayed(string, bool) {}

// OutboxDispatcher forwards pending outbox messages to the bus. Rows are claimed with
// FOR UPDATE SKIP LOCKED, so several replicas can drain the same table.
type OutboxDispatcher struct {
	tx        port.Transactor
	relay     port.OutboxRelay
	batchSize uint64
	interval  time.Duration
	metrics   RelayMetrics
	logger    *zap.Logger
}

// NewOutboxDispatcher constructs the dispatcher.
func NewOutboxDispatcher(tx port.Transactor, relay port.OutboxRelay, batchSize uint64, interval time.Duration, logger *zap.Logger) *OutboxDispatcher {
	if batchSize == 0 {
		batchSize = defaultOutboxBatchSize
	}
	if interval <= 0 {
		interval = defaultOutboxPollInterval
	}
	return &OutboxDispatcher{
		tx:        tx,
		relay:     relay,
		batchSize: batchSize,
		interval:  interval,
		metrics:   noopRelayMetrics{},
		logger:    logger,
	}
}

// WithMetrics attaches relay counters.
func (d *OutboxDispatcher) WithMetrics(m RelayMetrics) *OutboxDispatcher {
	if m != nil {
		d.metrics = m
	}
	return d
}

// DrainOnce relays one batch and reports how many messages were dispatched.
// A message that fails to relay stays pending with its attempt counter bumped.
func (d *OutboxDispatcher) DrainOnce(ctx context.Context) (int, error) {
	dispatched := 0
	err := d.tx.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		dispatched = 0
		pending, err := repos.Outbox.ClaimPending(ctx, d.batchSize)
		if err != nil {
			return fmt.Errorf("claim outbox: %w", err)
		}

		for _, msg := range pending {
			if err := d.relay.Relay(ctx, msg); err != nil {
				d.metrics.EventRelayed(msg.EventType, false)
				d.logger.Warn("relay outbox message failed",
					zap.String("id", msg.ID),
					zap.String("event_type", msg.EventType),
					zap.Int("attempts", msg.Attempts+1),
					zap.Error(err),
				)
				if err := repos.Outbox.MarkFailed(ctx, msg.ID, err.Error()); err != nil {
					return fmt.Errorf("mark outbox %s failed: %w", msg.ID, err)
				}
				continue
			}

			d.metrics.EventRelayed(msg.EventType, true)
			if err := repos.Outbox.MarkDispatched(ctx, msg.ID); err != nil {
				return fmt.Errorf("mark outbox %s dispatched: %w", msg.ID, err)
			}
			dispatched++
		}
		return nil
	})
	return dispatched, err
}

// Run drains the outbox until ctx is cancelled. A full batch is followed immediately by
// another drain; otherwise the dispatcher waits for the next tick.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher started", zap.Duration("interval", d.interval), zap.Uint64("batch_size", d.batchSize))
	for {
		n, err := d.DrainOnce(ctx)
		if err != nil && ctx.Err() == nil {
			d.logger.Error("drain outbox failed", zap.Error(err))
		}
		if err == nil && uint64(n) >= d.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}
