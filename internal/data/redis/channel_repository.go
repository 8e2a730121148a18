package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodial-tipbot/internal/domain/channel"
	"github.com/redis/go-redis/v9"
)

// ChannelRepository implements channel.Repository as a Redis set
type ChannelRepository struct {
	client redis.UniversalClient
}

func NewChannelRepository(client redis.UniversalClient) *ChannelRepository {
	return &ChannelRepository{client: client}
}

var _ channel.Repository = (*ChannelRepository)(nil)

func (r *ChannelRepository) Add(ctx context.Context, name string) error {
	if err := r.client.SAdd(ctx, keyChannels, channel.Normalize(name)).Err(); err != nil {
		return fmt.Errorf("failed to add channel %s: %w", name, err)
	}
	return nil
}

func (r *ChannelRepository) Remove(ctx context.Context, name string) error {
	if err := r.client.SRem(ctx, keyChannels, channel.Normalize(name)).Err(); err != nil {
		return fmt.Errorf("failed to remove channel %s: %w", name, err)
	}
	return nil
}

// List returns the allow-list sorted by name
func (r *ChannelRepository) List(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, keyChannels).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *ChannelRepository) Contains(ctx context.Context, name string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, keyChannels, channel.Normalize(name)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check channel %s: %w", name, err)
	}
	return ok, nil
}
