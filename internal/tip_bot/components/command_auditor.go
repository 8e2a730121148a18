package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/custodial-tipbot/internal/tip_bot/service"
)

// CommandIDAllocator hands out audit command ids
type CommandIDAllocator interface {
	NextCommandID(ctx context.Context) (uint64, error)
}

type CommandAuditorImpl struct {
	auditRepo audit.Repository
	ids       CommandIDAllocator
	logger    *slog.Logger
}

func NewCommandAuditor(auditRepo audit.Repository, ids CommandIDAllocator, logger *slog.Logger) service.CommandAuditor {
	return &CommandAuditorImpl{
		auditRepo: auditRepo,
		ids:       ids,
		logger:    logger,
	}
}

// Begin records an event as received and returns its command id. A retried event
// keeps the entry and id of its first attempt.
func (a *CommandAuditorImpl) Begin(ctx context.Context, ev event.Event) (uint64, error) {
	existing, err := a.auditRepo.GetByEventID(ctx, ev.EventID())
	if err != nil {
		return 0, fmt.Errorf("failed to look up audit entry for event %s: %w", ev.EventID(), err)
	}
	if existing != nil {
		return existing.CommandID, nil
	}

	commandID, err := a.ids.NextCommandID(ctx)
	if err != nil {
		return 0, err
	}

	entry := &audit.Entry{
		CommandID:     commandID,
		EventID:       ev.EventID(),
		EventKind:     string(ev.EventKind()),
		Author:        ev.AuthorName(),
		Body:          ev.Text(),
		CorrelationID: shared.CorrelationIDFrom(ctx),
		Outcome:       audit.OutcomeReceived,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.auditRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, audit.ErrDuplicateEntry{}) {
			// another worker recorded the same event first
			if winner, getErr := a.auditRepo.GetByEventID(ctx, ev.EventID()); getErr == nil && winner != nil {
				return winner.CommandID, nil
			}
		}
		return 0, fmt.Errorf("failed to create audit entry for event %s: %w", ev.EventID(), err)
	}
	return commandID, nil
}

// Complete stores how the command ended
func (a *CommandAuditorImpl) Complete(ctx context.Context, commandID uint64, outcome audit.Outcome, detail string) error {
	return a.auditRepo.UpdateOutcome(ctx, commandID, outcome, detail)
}

// Abandon marks the entry of an event that exhausted its retries
func (a *CommandAuditorImpl) Abandon(ctx context.Context, eventID, reason string) error {
	entry, err := a.auditRepo.GetByEventID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to look up audit entry for event %s: %w", eventID, err)
	}
	if entry == nil {
		a.logger.Warn("No audit entry for abandoned event", "event_id", eventID)
		return nil
	}
	return a.auditRepo.UpdateOutcome(ctx, entry.CommandID, audit.OutcomeAbandoned, reason)
}
