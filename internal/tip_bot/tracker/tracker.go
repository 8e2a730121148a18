// Package tracker follows submitted transactions until the chain confirms or rejects
// them, so submission never waits on finalization.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/custodial-tipbot/internal/platform/chain"
)

// StatusClient reports the confirmation state of a chain transaction
type StatusClient interface {
	ConfirmationStatus(ctx context.Context, chainTxID string) (chain.Status, error)
}

// Outcome is a transaction that reached a terminal state during a drain. Its state is
// CONFIRMED, REJECTED or UNCONFIRMED.
type Outcome struct {
	Transaction *transaction.Transaction
	Status      chain.Status
}

// polls and settled are only touched under drainMu
type entry struct {
	tx      *transaction.Transaction
	polls   int
	settled *Outcome
}

// Tracker holds the pending set keyed by chain transaction id. Membership is mirrored
// to the store so a restart resumes tracking.
type Tracker struct {
	client   StatusClient
	repo     transaction.PendingRepository
	logger   *slog.Logger
	maxPolls int
	now      func() time.Time

	drainMu sync.Mutex
	mu      sync.Mutex
	pending map[string]*entry
}

func New(logger *slog.Logger, client StatusClient, repo transaction.PendingRepository, maxPolls int) *Tracker {
	return &Tracker{
		client:   client,
		repo:     repo,
		logger:   logger,
		maxPolls: maxPolls,
		now:      time.Now,
		pending:  make(map[string]*entry),
	}
}

// Add starts tracking a submitted transaction. Adding the same chain id twice is a no-op.
func (t *Tracker) Add(ctx context.Context, tx *transaction.Transaction) error {
	if tx.ChainTxID == "" {
		return errors.New("cannot track a transaction without a chain id")
	}
	if tx.State != transaction.StateSubmitted {
		return fmt.Errorf("cannot track transaction %d in state %s", tx.ID, tx.State)
	}

	t.mu.Lock()
	if _, ok := t.pending[tx.ChainTxID]; ok {
		t.mu.Unlock()
		return nil
	}
	t.pending[tx.ChainTxID] = &entry{tx: tx}
	t.mu.Unlock()

	if err := t.repo.Put(ctx, tx); err != nil {
		t.logger.Error("Failed to persist pending transaction", "chain_tx_id", tx.ChainTxID, "error", err)
		return err
	}
	t.logger.Debug("Tracking transaction", "transaction_id", tx.ID, "chain_tx_id", tx.ChainTxID)
	return nil
}

// Restore reloads the persisted pending set, returning how many transactions it holds
func (t *Tracker) Restore(ctx context.Context) (int, error) {
	txs, err := t.repo.All(ctx)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tx := range txs {
		if _, ok := t.pending[tx.ChainTxID]; !ok {
			t.pending[tx.ChainTxID] = &entry{tx: tx}
		}
	}
	return len(t.pending), nil
}

// Drain polls every pending transaction once and returns those that reached a
// terminal state: confirmed, rejected, or still pending after maxPolls drains.
// Terminal members stay in the set and are returned again by later drains until
// the caller removes them, so an outcome is never lost before it is recorded.
// A member whose status cannot be read stays pending.
func (t *Tracker) Drain(ctx context.Context) []Outcome {
	t.drainMu.Lock()
	defer t.drainMu.Unlock()

	t.mu.Lock()
	snapshot := make([]*entry, 0, len(t.pending))
	for _, e := range t.pending {
		snapshot = append(snapshot, e)
	}
	t.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].tx.ID < snapshot[j].tx.ID })

	var outcomes []Outcome
	for _, e := range snapshot {
		if ctx.Err() != nil {
			break
		}
		if e.settled != nil {
			outcomes = append(outcomes, *e.settled)
			continue
		}
		chainTxID := e.tx.ChainTxID
		status, err := t.client.ConfirmationStatus(ctx, chainTxID)
		if err != nil {
			t.logger.Warn("Failed to read confirmation status", "chain_tx_id", chainTxID, "error", err)
			continue
		}

		// transition a copy; Snapshot may be reading e.tx
		next := *e.tx
		var transitionErr error
		switch status.Kind {
		case chain.StatusConfirmed:
			transitionErr = next.MarkConfirmed(status.Round, t.now())
		case chain.StatusRejected:
			transitionErr = next.MarkRejected(status.Reason)
		default:
			e.polls++
			if t.maxPolls <= 0 || e.polls < t.maxPolls {
				continue
			}
			t.logger.Warn("Giving up on unconfirmed transaction", "chain_tx_id", chainTxID, "polls", e.polls)
			transitionErr = next.MarkUnconfirmed()
		}
		if transitionErr != nil {
			t.logger.Error("Dropping transaction in unexpected state", "chain_tx_id", chainTxID, "error", transitionErr)
			if err := t.Remove(ctx, chainTxID); err != nil {
				t.logger.Error("Failed to remove pending transaction from store", "chain_tx_id", chainTxID, "error", err)
			}
			continue
		}

		outcome := Outcome{Transaction: &next, Status: status}
		e.settled = &outcome
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Remove deletes a member once its outcome has been recorded. Removing an unknown
// chain id is a no-op.
func (t *Tracker) Remove(ctx context.Context, chainTxID string) error {
	t.mu.Lock()
	_, ok := t.pending[chainTxID]
	delete(t.pending, chainTxID)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	if err := t.repo.Remove(ctx, chainTxID); err != nil {
		return fmt.Errorf("failed to remove pending transaction %s: %w", chainTxID, err)
	}
	return nil
}

// Len is the number of pending transactions
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Snapshot copies the pending transactions, oldest first
func (t *Tracker) Snapshot() []transaction.Transaction {
	t.mu.Lock()
	out := make([]transaction.Transaction, 0, len(t.pending))
	for _, e := range t.pending {
		out = append(out, *e.tx)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
