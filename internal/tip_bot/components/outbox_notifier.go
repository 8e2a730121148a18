package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/outbox"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxNotifier implements event.Notifier by queueing notifications in the outbox
// table; the outbox poller publishes them to the platform bridge.
type OutboxNotifier struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxNotifier(outboxRepo outbox.Repository, logger *slog.Logger) event.Notifier {
	return &OutboxNotifier{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Reply answers the comment or message ev
func (n *OutboxNotifier) Reply(ctx context.Context, ev event.Event, text string) error {
	return n.enqueue(ctx, &shared.Notification{
		Kind:      shared.NotificationReply,
		EventID:   ev.EventID(),
		EventKind: string(ev.EventKind()),
		Recipient: ev.AuthorName(),
		Body:      text,
	})
}

// DirectMessage opens a private message to identity
func (n *OutboxNotifier) DirectMessage(ctx context.Context, identity, subject, text string) error {
	return n.enqueue(ctx, &shared.Notification{
		Kind:      shared.NotificationDirect,
		Recipient: identity,
		Subject:   subject,
		Body:      text,
	})
}

func (n *OutboxNotifier) enqueue(ctx context.Context, notification *shared.Notification) error {
	notification.ID = uuid.New()
	notification.CorrelationID = shared.CorrelationIDFrom(ctx)
	notification.Timestamp = time.Now().UTC()

	logger := n.logger
	if notification.CorrelationID != "" {
		logger = n.logger.With("correlation_id", notification.CorrelationID)
	}

	message, err := outbox.NewMessage(notification)
	if err != nil {
		logger.Error("Failed to create new outbox message", "kind", notification.Kind, "error", err)
		return fmt.Errorf("failed to create outbox message for %s: %w", notification.Recipient, err)
	}

	if err = n.outboxRepo.Create(ctx, message); err != nil {
		logger.Error("Failed to create outbox message",
			"notification_id", notification.ID.String(),
			"recipient", notification.Recipient,
			"error", err,
		)
		return fmt.Errorf("failed to queue notification for %s: %w", notification.Recipient, err)
	}
	logger.Debug("Notification queued",
		"notification_id", notification.ID.String(),
		"kind", notification.Kind,
		"outbox_id", message.ID,
	)
	return nil
}
