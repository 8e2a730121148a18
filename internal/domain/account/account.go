package account

import (
	"errors"
	"strings"
	"time"
)

// Common errors
var (
	ErrEmptyIdentity  = errors.New("identity cannot be empty")
	ErrEmptyAddress   = errors.New("wallet address cannot be empty")
	ErrEmptySealedKey = errors.New("wallet sealed key cannot be empty")
)

// Wallet is the custodial keypair of an account. The private key is only ever held
// sealed; opening it is the chain adapter's business.
type Wallet struct {
	Address   string `json:"address"`
	SealedKey []byte `json:"-"`
}

// Validate checks that both halves of the keypair are present
func (w Wallet) Validate() error {
	if w.Address == "" {
		return ErrEmptyAddress
	}
	if len(w.SealedKey) == 0 {
		return ErrEmptySealedKey
	}
	return nil
}

// Account represents a platform identity with its custodial wallet
type Account struct {
	ID        uint64    `json:"id"`
	Identity  string    `json:"identity"`
	Wallet    Wallet    `json:"wallet"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeIdentity lowercases a platform username and strips the "u/" forms users type
func NormalizeIdentity(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	identity = strings.TrimPrefix(identity, "/")
	identity = strings.TrimPrefix(identity, "u/")
	return identity
}

// NewAccount builds an account record for a freshly allocated id and wallet
func NewAccount(id uint64, identity string, wallet Wallet) (*Account, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	if err := wallet.Validate(); err != nil {
		return nil, err
	}

	return &Account{
		ID:        id,
		Identity:  identity,
		Wallet:    wallet,
		CreatedAt: time.Now().UTC(),
	}, nil
}
