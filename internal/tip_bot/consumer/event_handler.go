package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/platform/messaging/producers"
	"github.com/custodial-tipbot/internal/tip_bot/replies"
	"github.com/custodial-tipbot/internal/tip_bot/service"
)

// EventHandler turns dispatch results into what the event loop acts on: nil when the
// event is finished, an error wrapping chain.ErrLedgerUnavailable when it should be
// retried. Unexpected failures and panics end with a generic reply to the author.
type EventHandler struct {
	dispatcher service.DispatchService
	notifier   event.Notifier
	auditor    service.CommandAuditor
	producer   producers.DeadLetterPublisher
	replies    *replies.Renderer
	logger     *slog.Logger
}

// NewEventHandler creates a new handler
func NewEventHandler(
	logger *slog.Logger,
	dispatcher service.DispatchService,
	notifier event.Notifier,
	auditor service.CommandAuditor,
	producer producers.DeadLetterPublisher,
	renderer *replies.Renderer,
) *EventHandler {
	return &EventHandler{
		dispatcher: dispatcher,
		notifier:   notifier,
		auditor:    auditor,
		producer:   producer,
		replies:    renderer,
		logger:     logger,
	}
}

// HandleEvent dispatches a single event
func (h *EventHandler) HandleEvent(ctx context.Context, ev event.Event) error {
	return h.settle(ctx, ev, h.dispatch(ctx, ev))
}

// HandleBatch dispatches events, concurrently when the dispatcher supports it.
// The result for events[i] is at index i.
func (h *EventHandler) HandleBatch(ctx context.Context, events []event.Event) []error {
	var results []error
	if batch, ok := h.dispatcher.(service.BatchDispatcher); ok {
		results = batch.DispatchAll(ctx, events)
	} else {
		results = make([]error, len(events))
		for i, ev := range events {
			results[i] = h.dispatch(ctx, ev)
		}
	}

	for i, ev := range events {
		results[i] = h.settle(ctx, ev, results[i])
	}
	return results
}

func (h *EventHandler) dispatch(ctx context.Context, ev event.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("Panic recovered while handling event",
				"event_id", ev.EventID(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("panic while handling event %s: %v", ev.EventID(), p)
		}
	}()
	return h.dispatcher.Dispatch(ctx, ev)
}

func (h *EventHandler) settle(ctx context.Context, ev event.Event, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, chain.ErrLedgerUnavailable) {
		h.logger.Warn("Ledger unavailable, event will be retried", "event_id", ev.EventID(), "error", err)
		return err
	}

	h.logger.Error("Failed to handle event",
		"event_id", ev.EventID(),
		"author", ev.AuthorName(),
		"error", err,
	)
	h.sendGenericFailure(ctx, ev)
	return nil
}

// Abandon gives up on an event that kept hitting an unavailable ledger: it is
// published to the dead letter topic and the author is told it failed.
func (h *EventHandler) Abandon(ctx context.Context, ev event.Event, reason string) {
	logger := h.logger.With("event_id", ev.EventID())

	payload, err := event.Encode(ev)
	if err != nil {
		logger.Error("Failed to encode abandoned event", "error", err)
	} else if dlqErr := h.producer.PublishToDLQ(ctx, ev.EventID(), payload, reason); dlqErr != nil {
		if errors.Is(dlqErr, producers.ErrDLQDisabled) {
			logger.Warn("Dead letter topic disabled, dropping abandoned event", "reason", reason)
		} else {
			logger.Error("Failed to publish abandoned event to DLQ", "dlq_error", dlqErr, "reason", reason)
		}
	} else {
		logger.Info("Published abandoned event to DLQ", "reason", reason)
	}

	h.sendGenericFailure(ctx, ev)

	if err := h.auditor.Abandon(ctx, ev.EventID(), reason); err != nil {
		logger.Error("Failed to record abandoned event", "error", err)
	}
}

func (h *EventHandler) sendGenericFailure(ctx context.Context, ev event.Event) {
	msg := h.replies.GenericFailure()
	if err := h.notifier.DirectMessage(ctx, ev.AuthorName(), msg.Subject, msg.Body); err != nil {
		h.logger.Error("Failed to queue failure notice", "event_id", ev.EventID(), "error", err)
	}
}
