package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CounterRepository hands out ids for the audit log
type CounterRepository struct {
	client redis.UniversalClient
}

func NewCounterRepository(client redis.UniversalClient) *CounterRepository {
	return &CounterRepository{client: client}
}

// NextCommandID returns the next audit command id
func (r *CounterRepository) NextCommandID(ctx context.Context) (uint64, error) {
	id, err := r.client.Incr(ctx, keyCommandIDCounter).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate command id: %w", err)
	}
	return uint64(id), nil
}
