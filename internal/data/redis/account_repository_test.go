package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_IdentityMapping(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	repo := NewAccountRepository(newTestLogger(), client)

	_, err := repo.GetIDByIdentity(ctx, "alice")
	assert.ErrorIs(t, err, account.ErrAccountNotFound{Identity: "alice"})

	id, err := repo.AllocateID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	winner, err := repo.ClaimIdentity(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, id, winner)

	stored, err := mr.Get("users:alice")
	require.NoError(t, err)
	assert.Equal(t, "1", stored)

	got, err := repo.GetIDByIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	t.Run("LostClaimReturnsWinner", func(t *testing.T) {
		other, err := repo.AllocateID(ctx)
		require.NoError(t, err)
		winner, err := repo.ClaimIdentity(ctx, "alice", other)
		require.NoError(t, err)
		assert.Equal(t, id, winner)
	})
}

func TestAccountRepository_ConcurrentClaimsConverge(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	repo := NewAccountRepository(newTestLogger(), client)

	const n = 8
	results := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.AllocateID(ctx)
			require.NoError(t, err)
			results[i], err = repo.ClaimIdentity(ctx, "bob", id)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestAccountRepository_Wallet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	repo := NewAccountRepository(newTestLogger(), client)

	_, err := repo.GetByID(ctx, 3)
	assert.ErrorIs(t, err, account.ErrWalletNotFound{AccountID: 3})

	acc := &account.Account{
		ID:        3,
		Identity:  "alice",
		Wallet:    account.Wallet{Address: "ADDR3", SealedKey: []byte{0xde, 0xad, 0xbe, 0xef}},
		CreatedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}

	created, err := repo.CreateWallet(ctx, acc)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ADDR3", mr.HGet("wallets:3", "address"))

	got, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, acc, got)

	t.Run("NeverRegenerated", func(t *testing.T) {
		replacement := *acc
		replacement.Wallet = account.Wallet{Address: "OTHER", SealedKey: []byte{1}}
		created, err := repo.CreateWallet(ctx, &replacement)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := repo.GetByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "ADDR3", got.Wallet.Address)
	})
}
