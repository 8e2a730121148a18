package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/redis/go-redis/v9"
)

// MarkerRepository implements event.MarkerRepository with expiring keys
type MarkerRepository struct {
	client redis.UniversalClient
}

func NewMarkerRepository(client redis.UniversalClient) *MarkerRepository {
	return &MarkerRepository{client: client}
}

var _ event.MarkerRepository = (*MarkerRepository)(nil)

func (r *MarkerRepository) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, markerKey(eventID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (r *MarkerRepository) Release(ctx context.Context, eventID string) error {
	if err := r.client.Del(ctx, markerKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", eventID, err)
	}
	return nil
}
