package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/tip_bot/service"
)

// WalletGenerator creates custodial keypairs with the private key already sealed
type WalletGenerator interface {
	GenerateWallet() (account.Wallet, error)
}

type AccountRegistryImpl struct {
	accountRepo account.Repository
	wallets     WalletGenerator
	locks       *identityLocks
	logger      *slog.Logger
}

func NewAccountRegistry(accountRepo account.Repository, wallets WalletGenerator, logger *slog.Logger) service.AccountRegistry {
	return &AccountRegistryImpl{
		accountRepo: accountRepo,
		wallets:     wallets,
		locks:       newIdentityLocks(),
		logger:      logger,
	}
}

// Lookup returns the account of identity without creating one
func (r *AccountRegistryImpl) Lookup(ctx context.Context, identity string) (*account.Account, error) {
	identity = account.NormalizeIdentity(identity)
	if identity == "" {
		return nil, account.ErrEmptyIdentity
	}

	id, err := r.accountRepo.GetIDByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	acc, err := r.accountRepo.GetByID(ctx, id)
	if errors.Is(err, account.ErrWalletNotFound{}) {
		// id claimed but the wallet write never happened
		return nil, account.ErrAccountNotFound{Identity: identity}
	}
	return acc, err
}

// GetOrCreate returns the account of identity, creating the id mapping and wallet on
// first use. Concurrent callers, in this process or another, converge on one id and
// one wallet; created is true only for the caller whose wallet was stored.
func (r *AccountRegistryImpl) GetOrCreate(ctx context.Context, identity string) (*account.Account, bool, error) {
	identity = account.NormalizeIdentity(identity)
	if identity == "" {
		return nil, false, account.ErrEmptyIdentity
	}

	acc, err := r.Lookup(ctx, identity)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, account.ErrAccountNotFound{}) {
		return nil, false, fmt.Errorf("failed to look up account %s: %w", identity, err)
	}

	unlock := r.locks.Lock(identity)
	defer unlock()

	id, err := r.accountRepo.GetIDByIdentity(ctx, identity)
	if errors.Is(err, account.ErrAccountNotFound{}) {
		allocated, allocErr := r.accountRepo.AllocateID(ctx)
		if allocErr != nil {
			return nil, false, allocErr
		}
		id, err = r.accountRepo.ClaimIdentity(ctx, identity, allocated)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve account id for %s: %w", identity, err)
	}

	acc, err = r.accountRepo.GetByID(ctx, id)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, account.ErrWalletNotFound{}) {
		return nil, false, err
	}

	wallet, err := r.wallets.GenerateWallet()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate wallet for %s: %w", identity, err)
	}
	acc, err = account.NewAccount(id, identity, wallet)
	if err != nil {
		return nil, false, err
	}

	stored, err := r.accountRepo.CreateWallet(ctx, acc)
	if err != nil {
		return nil, false, err
	}
	if !stored {
		r.logger.Info("Wallet created concurrently, discarding generated keypair", "identity", identity, "account_id", id)
		acc, err = r.accountRepo.GetByID(ctx, id)
		return acc, false, err
	}

	r.logger.Info("Account created", "identity", identity, "account_id", id, "address", acc.Wallet.Address)
	return acc, true, nil
}
