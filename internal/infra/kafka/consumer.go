package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/infra/config"
)

const defaultRetryBackoff = 500 * time.Millisecond

// MessageHandler processes one consumed message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerMetrics records per-topic consumption outcomes.
type ConsumerMetrics interface {
	EventConsumed(topic string, ok bool)
}

type noopConsumerMetrics struct{}

func (noopConsumerMetrics) EventConsumed(string, bool) {}

// ConsumerGroup feeds a topic to a MessageHandler through a sarama consumer group. Offsets
// are committed after the handler finishes, so delivery is at least once and handlers must
// be idempotent.
type ConsumerGroup struct {
	group      sarama.ConsumerGroup
	topics     []string
	handler    MessageHandler
	maxRetries int
	backoff    time.Duration
	metrics    ConsumerMetrics
	logger     *zap.Logger
}

// NewConsumerGroup joins cfg.ConsumerGroup for the given event types.
func NewConsumerGroup(cfg config.KafkaSettings, handler MessageHandler, logger *zap.Logger, eventTypes ...string) (*ConsumerGroup, error) {
	saramaConfig := newSaramaConfig(cfg)
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", cfg.ConsumerGroup, err)
	}

	topics := make([]string, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		topics = append(topics, TopicName(cfg.TopicPrefix, eventType))
	}

	return newConsumerGroup(group, topics, handler, cfg.MaxRetries, cfg.RetryBackoff, logger), nil
}

func newConsumerGroup(group sarama.ConsumerGroup, topics []string, handler MessageHandler, maxRetries int, backoff time.Duration, logger *zap.Logger) *ConsumerGroup {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &ConsumerGroup{
		group:      group,
		topics:     topics,
		handler:    handler,
		maxRetries: maxRetries,
		backoff:    backoff,
		metrics:    noopConsumerMetrics{},
		logger:     logger,
	}
}

// WithMetrics attaches consumption counters.
func (c *ConsumerGroup) WithMetrics(m ConsumerMetrics) *ConsumerGroup {
	if m != nil {
		c.metrics = m
	}
	return c
}

// Run consumes until ctx is cancelled. Consume returns on every rebalance, so it is called in a loop.
func (c *ConsumerGroup) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	c.logger.Info("Kafka consumer started", zap.Strings("topics", c.topics))
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume %v: %w", c.topics, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the group.
func (c *ConsumerGroup) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroup) Setup(session sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka partitions assigned", zap.Any("claims", session.Claims()))
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroup) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *ConsumerGroup) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.process(ctx, msg); err != nil {
				// Context cancelled mid-retry: leave the offset uncommitted for the next owner.
				return nil
			}
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

// process runs the handler with retries. Malformed messages and messages that exhaust their
// retries are logged and skipped; only cancellation is reported back.
func (c *ConsumerGroup) process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	for attempt := 0; ; attempt++ {
		err := c.handler.HandleMessage(ctx, msg)
		if err == nil {
			c.metrics.EventConsumed(msg.Topic, true)
			return nil
		}

		if errors.Is(err, ErrMalformedMessage) {
			c.metrics.EventConsumed(msg.Topic, false)
			log.Warn("skipping malformed message", zap.Error(err))
			return nil
		}
		if attempt >= c.maxRetries {
			c.metrics.EventConsumed(msg.Topic, false)
			log.Error("message failed after retries", zap.Int("attempts", attempt+1), zap.Error(err))
			return nil
		}

		log.Warn("message handling failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
}

var _ sarama.ConsumerGroupHandler = (*ConsumerGroup)(nil)
