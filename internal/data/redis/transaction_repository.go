package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/redis/go-redis/v9"
)

// TransactionRepository implements transaction.Repository: one hash per record plus a
// per-kind sorted set for recency queries
type TransactionRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, client redis.UniversalClient) *TransactionRepository {
	return &TransactionRepository{
		client: client,
		logger: logger,
	}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func indexKey(kind transaction.Kind) string {
	if kind == transaction.KindWithdraw {
		return keyWithdrawals
	}
	return keyTips
}

func (r *TransactionRepository) NextID(ctx context.Context) (uint64, error) {
	id, err := r.client.Incr(ctx, keyTransactionIDCounter).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate transaction id: %w", err)
	}
	return uint64(id), nil
}

// Save writes the record and indexes it; saving the same id again overwrites it
func (r *TransactionRepository) Save(ctx context.Context, tx *transaction.Transaction) error {
	if tx.ID == 0 {
		return errors.New("transaction id is required")
	}
	score := float64(tx.CreatedAt.UnixMilli())
	if tx.SubmittedAt != nil {
		score = float64(tx.SubmittedAt.UnixMilli())
	}

	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, transactionKey(tx.ID), toHash(tx))
		p.ZAdd(ctx, indexKey(tx.Kind), redis.Z{Score: score, Member: tx.ID})
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save transaction record", "transaction_id", tx.ID, "error", err)
		return fmt.Errorf("failed to save transaction %d: %w", tx.ID, err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uint64) (*transaction.Transaction, error) {
	fields, err := r.client.HGetAll(ctx, transactionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, transaction.ErrTransactionNotFound{ID: id}
	}
	tx, err := fromHash(id, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *TransactionRepository) ListRecent(ctx context.Context, kind transaction.Kind, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := r.client.ZRevRange(ctx, indexKey(kind), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s transactions: %w", kind, err)
	}

	ids := make([]uint64, 0, len(members))
	cmds := make([]*redis.MapStringStringCmd, 0, len(members))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, m := range members {
			id, err := strconv.ParseUint(m, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q in index: %w", m, err)
			}
			ids = append(ids, id)
			cmds = append(cmds, p.HGetAll(ctx, transactionKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s transactions: %w", kind, err)
	}

	txs := make([]*transaction.Transaction, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		tx, err := fromHash(ids[i], fields)
		if err != nil {
			r.logger.Warn("Skipping undecodable transaction record", "transaction_id", ids[i], "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func toHash(tx *transaction.Transaction) map[string]any {
	h := map[string]any{
		"kind":              string(tx.Kind),
		"sender_id":         tx.SenderID,
		"sender_identity":   tx.SenderIdentity,
		"receiver_id":       tx.ReceiverID,
		"receiver_identity": tx.ReceiverIdentity,
		"destination":       tx.Destination,
		"amount":            tx.Amount,
		"fee":               tx.Fee,
		"note":              tx.Note,
		"anonymous":         strconv.FormatBool(tx.Anonymous),
		"close_account":     strconv.FormatBool(tx.CloseAccount),
		"chain_tx_id":       tx.ChainTxID,
		"state":             string(tx.State),
		"failure_reason":    tx.FailureReason,
		"confirmed_round":   tx.ConfirmedRound,
		"created_at":        tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if tx.SubmittedAt != nil {
		h["submitted_at"] = tx.SubmittedAt.UTC().Format(time.RFC3339Nano)
	}
	if tx.ConfirmedAt != nil {
		h["confirmed_at"] = tx.ConfirmedAt.UTC().Format(time.RFC3339Nano)
	}
	return h
}

func fromHash(id uint64, h map[string]string) (*transaction.Transaction, error) {
	tx := &transaction.Transaction{
		ID:               id,
		Kind:             transaction.Kind(h["kind"]),
		SenderIdentity:   h["sender_identity"],
		ReceiverIdentity: h["receiver_identity"],
		Destination:      h["destination"],
		Note:             h["note"],
		ChainTxID:        h["chain_tx_id"],
		State:            transaction.State(h["state"]),
		FailureReason:    h["failure_reason"],
		Anonymous:        h["anonymous"] == "true",
		CloseAccount:     h["close_account"] == "true",
	}

	var err error
	if tx.SenderID, err = parseUint(h["sender_id"]); err != nil {
		return nil, fmt.Errorf("sender_id: %w", err)
	}
	if tx.ReceiverID, err = parseUint(h["receiver_id"]); err != nil {
		return nil, fmt.Errorf("receiver_id: %w", err)
	}
	if tx.ConfirmedRound, err = parseUint(h["confirmed_round"]); err != nil {
		return nil, fmt.Errorf("confirmed_round: %w", err)
	}
	if tx.Amount, err = strconv.ParseInt(h["amount"], 10, 64); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if tx.Fee, err = strconv.ParseInt(h["fee"], 10, 64); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, h["created_at"]); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if tx.SubmittedAt, err = parseOptionalTime(h["submitted_at"]); err != nil {
		return nil, fmt.Errorf("submitted_at: %w", err)
	}
	if tx.ConfirmedAt, err = parseOptionalTime(h["confirmed_at"]); err != nil {
		return nil, fmt.Errorf("confirmed_at: %w", err)
	}
	return tx, nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PendingRepository implements transaction.PendingRepository as a single hash keyed by
// chain transaction id
type PendingRepository struct {
	client redis.UniversalClient
}

func NewPendingRepository(client redis.UniversalClient) *PendingRepository {
	return &PendingRepository{client: client}
}

var _ transaction.PendingRepository = (*PendingRepository)(nil)

func (r *PendingRepository) Put(ctx context.Context, tx *transaction.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal pending transaction %s: %w", tx.ChainTxID, err)
	}
	if err := r.client.HSet(ctx, keyPending, tx.ChainTxID, payload).Err(); err != nil {
		return fmt.Errorf("failed to store pending transaction %s: %w", tx.ChainTxID, err)
	}
	return nil
}

func (r *PendingRepository) Remove(ctx context.Context, chainTxID string) error {
	if err := r.client.HDel(ctx, keyPending, chainTxID).Err(); err != nil {
		return fmt.Errorf("failed to remove pending transaction %s: %w", chainTxID, err)
	}
	return nil
}

func (r *PendingRepository) All(ctx context.Context) ([]*transaction.Transaction, error) {
	entries, err := r.client.HGetAll(ctx, keyPending).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	txs := make([]*transaction.Transaction, 0, len(entries))
	for chainTxID, payload := range entries {
		var tx transaction.Transaction
		if err := json.Unmarshal([]byte(payload), &tx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending transaction %s: %w", chainTxID, err)
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}
