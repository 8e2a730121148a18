package transaction

import (
	"context"
	"strconv"
)

// Repository persists finalized transaction records
type Repository interface {
	NextID(ctx context.Context) (uint64, error)
	Save(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uint64) (*Transaction, error)
	// ListRecent returns the newest records of a kind, newest first
	ListRecent(ctx context.Context, kind Kind, limit int) ([]*Transaction, error)
}

// PendingRepository mirrors the tracker's in-flight set so it survives a restart
type PendingRepository interface {
	Put(ctx context.Context, tx *Transaction) error
	Remove(ctx context.Context, chainTxID string) error
	All(ctx context.Context) ([]*Transaction, error)
}

// ErrTransactionNotFound indicates a missing transaction record
type ErrTransactionNotFound struct {
	ID uint64
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + strconv.FormatUint(e.ID, 10)
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.ID == 0 || t.ID == e.ID
}
