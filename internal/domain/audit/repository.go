package audit

import (
	"context"
	"strconv"
	"time"
)

// Repository manages audit entry persistence with pagination support
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByCommandID(ctx context.Context, commandID uint64) (*Entry, error)
	GetByEventID(ctx context.Context, eventID string) (*Entry, error)
	GetByAuthor(ctx context.Context, author string, limit, offset int) ([]*Entry, error)
	CountByAuthor(ctx context.Context, author string) (int64, error)
	UpdateOutcome(ctx context.Context, commandID uint64, outcome Outcome, detail string) error
	GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*Entry, error)
}

// ErrEntryNotFound indicates missing audit entry
type ErrEntryNotFound struct {
	CommandID uint64
}

func (e ErrEntryNotFound) Error() string {
	return "audit entry not found: " + strconv.FormatUint(e.CommandID, 10)
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// A zero target CommandID matches any ErrEntryNotFound
	if t.CommandID == 0 {
		return true
	}
	return e.CommandID == t.CommandID
}

// ErrDuplicateEntry indicates a command id written twice
type ErrDuplicateEntry struct {
	CommandID uint64
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate audit entry: " + strconv.FormatUint(e.CommandID, 10)
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.CommandID == 0 {
		return true
	}
	return e.CommandID == t.CommandID
}
