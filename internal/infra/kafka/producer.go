package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/infra/config"
)

// Producer bundles an async producer for fire-and-forget events with a sync producer
// for outbox relaying, where the caller must know the broker accepted the message.
type Producer struct {
	producer sarama.AsyncProducer
	sync     sarama.SyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	errChan  chan error
	done     chan struct{}
}

func newSaramaConfig(cfg config.KafkaSettings) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	return saramaConfig
}

// NewProducer initializes both producers and starts the async error handler.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	asyncConfig := newSaramaConfig(cfg)
	asyncConfig.Producer.RequiredAcks = sarama.WaitForLocal
	asyncConfig.Producer.Compression = sarama.CompressionSnappy
	asyncConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	asyncConfig.Producer.Flush.Messages = 100
	asyncConfig.Producer.Retry.Max = 3
	asyncConfig.Producer.Return.Successes = false
	asyncConfig.Producer.Return.Errors = true

	asyncProducer, err := sarama.NewAsyncProducer(cfg.Brokers, asyncConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	// Activation events drive cross-service consistency, so the relay waits for all replicas.
	syncConfig := newSaramaConfig(cfg)
	syncConfig.Producer.RequiredAcks = sarama.WaitForAll
	syncConfig.Producer.Idempotent = true
	syncConfig.Net.MaxOpenRequests = 1
	syncConfig.Producer.Retry.Max = 5
	syncConfig.Producer.Return.Successes = true
	syncConfig.Producer.Return.Errors = true

	syncProducer, err := sarama.NewSyncProducer(cfg.Brokers, syncConfig)
	if err != nil {
		_ = asyncProducer.Close()
		return nil, fmt.Errorf("create kafka sync producer: %w", err)
	}

	p := newProducer(asyncProducer, syncProducer, cfg, logger)

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return p, nil
}

func newProducer(async sarama.AsyncProducer, sync sarama.SyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	p := &Producer{
		producer: async,
		sync:     sync,
		logger:   logger,
		cfg:      cfg,
		errChan:  make(chan error, 256),
		done:     make(chan struct{}),
	}
	go p.handleErrors()
	return p
}

// handleErrors drains the async error channel
func (p *Producer) handleErrors() {
	for {
		select {
		case err, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if err != nil {
				p.logger.Error("Kafka producer error",
					zap.Error(err.Err),
					zap.String("topic", err.Msg.Topic),
				)
				select {
				case p.errChan <- err.Err:
				default:
					p.logger.Warn("Error channel full, dropping error")
				}
			}
		case <-p.done:
			return
		}
	}
}

// Producer returns the underlying Sarama AsyncProducer
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// SyncProducer returns the producer used for acknowledged sends.
func (p *Producer) SyncProducer() sarama.SyncProducer {
	return p.sync
}

// Errors returns the error channel for external monitoring
func (p *Producer) Errors() <-chan error {
	return p.errChan
}

// Close flushes pending messages and closes both producers.
func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	close(p.done)

	var errs []error
	if err := p.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	if p.sync != nil {
		if err := p.sync.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka sync producer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// TopicName returns the full topic name with prefix
func (p *Producer) TopicName(eventType string) string {
	return TopicName(p.cfg.TopicPrefix, eventType)
}

// TopicName prefixes eventType with prefix unless it is already prefixed.
func TopicName(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}

	dotted := prefix + "."
	if strings.HasPrefix(eventType, dotted) {
		return eventType
	}

	return dotted + eventType
}
