// Package scheduler runs the bot's single control loop: finalize confirmed
// transactions, fetch new events, dispatch them, acknowledge them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodial-tipbot/internal/config"
	"github.com/custodial-tipbot/internal/domain/channel"
	"github.com/custodial-tipbot/internal/domain/command"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/metrics"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/tip_bot/tracker"
)

// Handler dispatches a batch of events; see consumer.EventHandler
type Handler interface {
	HandleBatch(ctx context.Context, events []event.Event) []error
	Abandon(ctx context.Context, ev event.Event, reason string)
}

// Drainer is the pending-transaction tracker
type Drainer interface {
	Drain(ctx context.Context) []tracker.Outcome
	Remove(ctx context.Context, chainTxID string) error
	Len() int
}

// Finalizer performs the side effects of a drained transaction
type Finalizer interface {
	Finalize(ctx context.Context, outcome tracker.Outcome) error
}

type Config struct {
	CycleInterval     time.Duration
	ConfirmationEvery int
	MaxEventRetries   int
	IdempotencyTTL    time.Duration
	SeenCacheSize     int
	Prefixes          []string
}

// ConfigFromBot maps the bot configuration section onto the loop settings
func ConfigFromBot(cfg *config.BotConfig) Config {
	return Config{
		CycleInterval:     cfg.CycleInterval,
		ConfirmationEvery: cfg.ConfirmationEvery,
		MaxEventRetries:   cfg.MaxEventRetries,
		IdempotencyTTL:    cfg.IdempotencyTTL,
		SeenCacheSize:     cfg.SeenCacheSize,
		Prefixes:          cfg.Prefixes(),
	}
}

// Loop owns the per-cycle state: cycle counter, seen cache and retry queue.
// RunCycle must not be called concurrently.
type Loop struct {
	cfg       Config
	source    event.Source
	markers   event.MarkerRepository
	channels  channel.Repository
	handler   Handler
	drainer   Drainer
	finalizer Finalizer
	logger    *slog.Logger

	cycle    int
	seen     *seenCache
	retries  []event.Event
	attempts map[string]int
}

func New(
	logger *slog.Logger,
	cfg Config,
	source event.Source,
	markers event.MarkerRepository,
	channels channel.Repository,
	handler Handler,
	drainer Drainer,
	finalizer Finalizer,
) *Loop {
	if cfg.ConfirmationEvery < 1 {
		cfg.ConfirmationEvery = 1
	}
	return &Loop{
		cfg:       cfg,
		source:    source,
		markers:   markers,
		channels:  channels,
		handler:   handler,
		drainer:   drainer,
		finalizer: finalizer,
		logger:    logger,
		seen:      newSeenCache(cfg.SeenCacheSize),
		attempts:  make(map[string]int),
	}
}

// Run executes cycles until ctx is canceled. A cycle in progress finishes its
// dispatches before Run returns.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("Starting event loop",
		"cycle_interval", l.cfg.CycleInterval.String(),
		"confirmation_every", l.cfg.ConfirmationEvery,
		"max_event_retries", l.cfg.MaxEventRetries,
	)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Event loop stopping due to context cancellation.")
			return
		case <-timer.C:
			l.RunCycle(ctx)
			timer.Reset(l.cfg.CycleInterval)
		}
	}
}

// RunCycle performs one iteration of the loop
func (l *Loop) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	l.cycle++
	if l.cycle%l.cfg.ConfirmationEvery == 0 {
		l.finalizePending(ctx)
	}

	fetched, err := l.source.FetchNewEvents(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("Failed to fetch new events", "error", err)
		}
		// retries still run; anything partially fetched is handled too
	}

	batch := l.admit(ctx, fetched)
	if len(batch) > 0 {
		l.logger.Debug("Dispatching events", "cycle", l.cycle, "count", len(batch))
		results := l.handler.HandleBatch(ctx, batch)
		for i, ev := range batch {
			l.conclude(ctx, ev, results[i])
		}
	}

	if len(fetched) > 0 {
		if err := l.source.MarkConsumed(context.WithoutCancel(ctx), fetched); err != nil {
			l.logger.Error("Failed to mark events consumed", "count", len(fetched), "error", err)
		}
	}
}

func (l *Loop) finalizePending(ctx context.Context) {
	for _, outcome := range l.drainer.Drain(ctx) {
		logger := l.logger.With("transaction_id", outcome.Transaction.ID, "chain_tx_id", outcome.Transaction.ChainTxID)
		if err := l.finalizer.Finalize(ctx, outcome); err != nil {
			// stays pending; the next drain hands it back
			logger.Error("Failed to finalize transaction", "error", err)
			continue
		}
		if err := l.drainer.Remove(ctx, outcome.Transaction.ChainTxID); err != nil {
			logger.Error("Failed to remove finalized transaction", "error", err)
		}
	}
	metrics.PendingTransactions.Set(float64(l.drainer.Len()))
}

// admit builds the cycle's batch from the retry queue and the fetched events, claiming
// a durable marker for each event it lets through
func (l *Loop) admit(ctx context.Context, fetched []event.Event) []event.Event {
	candidates := l.retries
	l.retries = nil
	candidates = append(candidates, fetched...)

	batch := make([]event.Event, 0, len(candidates))
	inBatch := make(map[string]struct{}, len(candidates))
	for _, ev := range candidates {
		id := ev.EventID()
		if _, ok := inBatch[id]; ok {
			continue
		}
		if l.seen.Contains(id) {
			metrics.EventsSkipped.WithLabelValues("seen").Inc()
			continue
		}

		if reason, err := l.filter(ctx, ev); err != nil {
			l.logger.Error("Failed to check event", "event_id", id, "error", err)
			l.requeue(ctx, ev, err.Error())
			continue
		} else if reason != "" {
			l.logger.Debug("Skipping event", "event_id", id, "reason", reason)
			metrics.EventsSkipped.WithLabelValues(reason).Inc()
			l.seen.Add(id)
			continue
		}

		claimed, err := l.markers.Claim(ctx, id, l.cfg.IdempotencyTTL)
		if err != nil {
			l.logger.Error("Failed to claim event", "event_id", id, "error", err)
			l.requeue(ctx, ev, err.Error())
			continue
		}
		if !claimed {
			l.logger.Info("Event already processed, skipping", "event_id", id)
			metrics.EventsSkipped.WithLabelValues("duplicate").Inc()
			l.seen.Add(id)
			continue
		}

		inBatch[id] = struct{}{}
		batch = append(batch, ev)
	}
	return batch
}

// filter returns a skip reason for events the bot should not answer
func (l *Loop) filter(ctx context.Context, ev event.Event) (string, error) {
	c, ok := ev.(*event.Comment)
	if !ok {
		return "", nil
	}
	if !command.IsInvocation(c.Body, l.cfg.Prefixes) {
		return "not_invocation", nil
	}
	allowed, err := l.channels.Contains(ctx, c.Channel)
	if err != nil {
		return "", fmt.Errorf("failed to check channel allow-list: %w", err)
	}
	if !allowed {
		return "channel_not_allowed", nil
	}
	return "", nil
}

func (l *Loop) conclude(ctx context.Context, ev event.Event, err error) {
	if err == nil || !errors.Is(err, chain.ErrLedgerUnavailable) {
		delete(l.attempts, ev.EventID())
		l.seen.Add(ev.EventID())
		return
	}
	if l.requeue(ctx, ev, err.Error()) {
		if rErr := l.markers.Release(context.WithoutCancel(ctx), ev.EventID()); rErr != nil {
			l.logger.Error("Failed to release event marker", "event_id", ev.EventID(), "error", rErr)
		}
	}
}

// requeue schedules ev for the next cycle, or abandons it once its retries are used up.
// It reports whether the event was requeued.
func (l *Loop) requeue(ctx context.Context, ev event.Event, cause string) bool {
	id := ev.EventID()
	l.attempts[id]++
	if l.attempts[id] > l.cfg.MaxEventRetries {
		delete(l.attempts, id)
		l.seen.Add(id)
		reason := fmt.Sprintf("gave up after %d retries: %s", l.cfg.MaxEventRetries, cause)
		l.logger.Warn("Abandoning event", "event_id", id, "reason", reason)
		metrics.EventsSkipped.WithLabelValues("abandoned").Inc()
		l.handler.Abandon(context.WithoutCancel(ctx), ev, reason)
		return false
	}
	l.logger.Info("Event requeued", "event_id", id, "attempt", l.attempts[id])
	l.retries = append(l.retries, ev)
	return true
}

// Pending is the number of events waiting in the retry queue
func (l *Loop) Pending() int {
	return len(l.retries)
}
