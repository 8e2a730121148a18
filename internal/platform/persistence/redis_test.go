package persistence

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/custodial-tipbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisDB(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("ConnectsAndPings", func(t *testing.T) {
		mr := miniredis.RunT(t)
		db, err := NewRedisDB(context.Background(), logger, &config.RedisConfig{Addrs: mr.Addr()})
		require.NoError(t, err)
		require.NotNil(t, db.Client())

		require.NoError(t, db.Client().Set(context.Background(), "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
		assert.NoError(t, db.Close())
	})

	t.Run("NoAddress", func(t *testing.T) {
		_, err := NewRedisDB(context.Background(), logger, &config.RedisConfig{Addrs: " "})
		assert.EqualError(t, err, "at least one redis address is required")
	})

	t.Run("Unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := NewRedisDB(context.Background(), logger, &config.RedisConfig{Addrs: addr})
		assert.ErrorContains(t, err, "failed to ping Redis")
	})
}

func TestRedisDB_Ping(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	mr := miniredis.RunT(t)
	db, err := NewRedisDB(context.Background(), logger, &config.RedisConfig{Addrs: mr.Addr()})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))

	mr.Close()
	assert.ErrorContains(t, db.Ping(context.Background()), "failed to ping Redis")
}
