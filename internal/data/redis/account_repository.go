package redis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/redis/go-redis/v9"
)

// createWalletScript writes the wallet hash only when the key does not exist yet
var createWalletScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// AccountRepository implements account.Repository on Redis
type AccountRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewAccountRepository creates a new Redis account repository
func NewAccountRepository(logger *slog.Logger, client redis.UniversalClient) *AccountRepository {
	return &AccountRepository{
		client: client,
		logger: logger,
	}
}

var _ account.Repository = (*AccountRepository)(nil)

func (r *AccountRepository) GetIDByIdentity(ctx context.Context, identity string) (uint64, error) {
	raw, err := r.client.Get(ctx, userKey(identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, account.ErrAccountNotFound{Identity: identity}
		}
		return 0, fmt.Errorf("failed to get account id for %s: %w", identity, err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse account id for %s: %w", identity, err)
	}
	return id, nil
}

func (r *AccountRepository) AllocateID(ctx context.Context) (uint64, error) {
	id, err := r.client.Incr(ctx, keyUserIDCounter).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate account id: %w", err)
	}
	return uint64(id), nil
}

func (r *AccountRepository) ClaimIdentity(ctx context.Context, identity string, id uint64) (uint64, error) {
	ok, err := r.client.SetNX(ctx, userKey(identity), id, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to claim identity %s: %w", identity, err)
	}
	if ok {
		return id, nil
	}

	winner, err := r.GetIDByIdentity(ctx, identity)
	if err != nil {
		return 0, err
	}
	r.logger.Debug("Identity already claimed, reusing existing id",
		"identity", identity,
		"allocated_id", id,
		"existing_id", winner,
	)
	return winner, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uint64) (*account.Account, error) {
	fields, err := r.client.HGetAll(ctx, walletKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, account.ErrWalletNotFound{AccountID: id}
	}

	sealed, err := base64.StdEncoding.DecodeString(fields["sealed_key"])
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed key of wallet %d: %w", id, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse creation time of wallet %d: %w", id, err)
	}

	return &account.Account{
		ID:       id,
		Identity: fields["identity"],
		Wallet: account.Wallet{
			Address:   fields["address"],
			SealedKey: sealed,
		},
		CreatedAt: createdAt,
	}, nil
}

func (r *AccountRepository) CreateWallet(ctx context.Context, acc *account.Account) (bool, error) {
	created, err := createWalletScript.Run(ctx, r.client, []string{walletKey(acc.ID)},
		"identity", acc.Identity,
		"address", acc.Wallet.Address,
		"sealed_key", base64.StdEncoding.EncodeToString(acc.Wallet.SealedKey),
		"created_at", acc.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		r.logger.Error("Failed to create wallet",
			"account_id", acc.ID,
			"identity", acc.Identity,
			"error", err,
		)
		return false, fmt.Errorf("failed to create wallet %d: %w", acc.ID, err)
	}
	return created == 1, nil
}
