package service

import (
	"context"
	"fmt"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/channel"
)

// AccountLookup resolves identities without creating accounts
type AccountLookup interface {
	Lookup(ctx context.Context, identity string) (*account.Account, error)
}

// BalanceReader reads on-chain balances
type BalanceReader interface {
	BalanceOf(ctx context.Context, address string) (int64, error)
}

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accounts AccountLookup
	balances BalanceReader
	channels channel.Repository
}

// NewAccountService creates a new account service
func NewAccountService(accounts AccountLookup, balances BalanceReader, channels channel.Repository) AccountService {
	return &AccountServiceImpl{
		accounts: accounts,
		balances: balances,
		channels: channels,
	}
}

// GetAccount looks the identity up and reads its wallet balance from the chain
func (s *AccountServiceImpl) GetAccount(ctx context.Context, identity string) (*account.Account, int64, error) {
	acc, err := s.accounts.Lookup(ctx, identity)
	if err != nil {
		return nil, 0, err
	}

	balance, err := s.balances.BalanceOf(ctx, acc.Wallet.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read balance of %s: %w", acc.Wallet.Address, err)
	}
	return acc, balance, nil
}

func (s *AccountServiceImpl) ListChannels(ctx context.Context) ([]string, error) {
	return s.channels.List(ctx)
}
