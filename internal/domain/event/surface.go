package event

import (
	"context"
	"time"
)

// Source delivers platform events. MarkConsumed acknowledges everything returned by
// the matching fetch regardless of how it was handled.
type Source interface {
	FetchNewEvents(ctx context.Context) ([]Event, error)
	MarkConsumed(ctx context.Context, events []Event) error
}

// Notifier posts text back to the platform
type Notifier interface {
	Reply(ctx context.Context, ev Event, text string) error
	DirectMessage(ctx context.Context, identity, subject, text string) error
}

// MarkerRepository holds durable processed-event markers
type MarkerRepository interface {
	// Claim sets the marker if absent; false means the event was already claimed
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// Release drops a claim so the event can be processed again
	Release(ctx context.Context, eventID string) error
}
