package account

import (
	"context"
	"strconv"
)

// Repository defines account persistence operations on the key-value store.
// Creation is split into claim steps so concurrent callers converge on one id and
// one wallet per identity.
type Repository interface {
	// GetIDByIdentity returns ErrAccountNotFound when the identity has no mapping
	GetIDByIdentity(ctx context.Context, identity string) (uint64, error)
	// AllocateID reserves the next account id
	AllocateID(ctx context.Context) (uint64, error)
	// ClaimIdentity maps identity to id unless another id already holds it, returning the winner
	ClaimIdentity(ctx context.Context, identity string, id uint64) (uint64, error)
	// GetByID returns ErrWalletNotFound when no wallet was stored for the id
	GetByID(ctx context.Context, id uint64) (*Account, error)
	// CreateWallet stores the wallet only if none exists; false means another writer won
	CreateWallet(ctx context.Context, account *Account) (bool, error)
}

// ErrAccountNotFound indicates an identity without an account
type ErrAccountNotFound struct {
	Identity string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.Identity
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	// An empty target identity matches any ErrAccountNotFound
	return t.Identity == "" || t.Identity == e.Identity
}

// ErrWalletNotFound indicates an allocated account id whose wallet was never stored
type ErrWalletNotFound struct {
	AccountID uint64
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found for account: " + strconv.FormatUint(e.AccountID, 10)
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	return t.AccountID == 0 || t.AccountID == e.AccountID
}
