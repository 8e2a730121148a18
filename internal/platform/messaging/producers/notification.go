package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/custodial-tipbot/internal/config"
	"github.com/segmentio/kafka-go"
)

// NotificationProducer publishes replies and direct messages for the platform bridge
type NotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewNotificationProducer creates the outbound producer and ensures its topic exists
func NewNotificationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for notification producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	// Synchronous so the outbox only marks a row processed once the broker has it
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &NotificationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NotificationTopic,
	}, nil
}

// Publish writes value as JSON keyed by key. Keying by recipient keeps one user's
// notifications ordered within a partition.
func (p *NotificationProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish notification to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published notification",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *NotificationProducer) Close() error {
	p.logger.Info("Closing notification producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close notification writer for topic %s: %w", p.topic, err)
	}
	return nil
}
