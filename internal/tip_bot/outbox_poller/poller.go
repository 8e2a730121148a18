package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodial-tipbot/internal/config"
	"github.com/custodial-tipbot/internal/domain/outbox"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/custodial-tipbot/internal/metrics"
)

// Poller publishes pending outbox notifications on an interval
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        NotificationPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher NotificationPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// Flush publishes whatever is pending once; used at shutdown after the loop stops
func (p *Poller) Flush(ctx context.Context) error {
	return p.processPendingMessages(ctx)
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "recipient", msg.Recipient)

		err := p.publisher.PublishNotification(ctx, msg)
		if err == nil {
			metrics.OutboxPublished.WithLabelValues("published").Inc()
			continue
		}

		logger.Error("Failed to publish outbox message",
			"notification_id", msg.NotificationID.String(), "current_attempts", msg.Attempts, "error", err,
		)
		metrics.OutboxPublished.WithLabelValues("failed").Inc()

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			logger.Error("Failed to increment attempts for outbox message", "error", errInc)
			continue
		}

		if msg.Attempts+1 >= p.maxRetryAttempts {
			logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
				"notification_id", msg.NotificationID.String(), "attempts_made", msg.Attempts+1,
			)
			metrics.OutboxPublished.WithLabelValues("gave_up").Inc()
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
				logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", errUpdate)
			}
		}
	}
	return nil
}
