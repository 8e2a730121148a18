package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodial-tipbot/internal/domain/outbox"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/custodial-tipbot/internal/platform/messaging/producers"
)

// NotificationPublisher hands outbox messages to the platform bridge
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, message *outbox.Message) error
}

// NotificationPublisherImpl implements NotificationPublisher over a Kafka producer
type NotificationPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewNotificationPublisher creates a new publisher
func NewNotificationPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) NotificationPublisher {
	return &NotificationPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishNotification publishes one message keyed by recipient and marks it PROCESSED.
// A payload that cannot be decoded is marked FAILED_TO_PUBLISH straight away.
func (p *NotificationPublisherImpl) PublishNotification(ctx context.Context, message *outbox.Message) error {
	notification, err := message.GetNotification()
	if err != nil {
		p.logger.Error("Failed to unmarshal notification from outbox payload",
			"outbox_id", message.ID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if notification.CorrelationID != "" {
		logger = p.logger.With("correlation_id", notification.CorrelationID)
	}

	if err := p.producer.Publish(ctx, notification.Recipient, notification); err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", notification.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "notification_id", notification.ID.String(), "error", err,
		)
		return fmt.Errorf("notification %s published, but failed to mark outbox %d as PROCESSED: %w", notification.ID, message.ID, err)
	}

	logger.Debug("Notification published and marked as PROCESSED",
		"outbox_id", message.ID,
		"notification_id", notification.ID.String(),
		"kind", notification.Kind,
	)
	return nil
}
