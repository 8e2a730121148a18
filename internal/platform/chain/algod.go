// Package chain adapts the Algorand node API to the operations the tip bot needs:
// fee discovery, balances, signing and submission, confirmation status and custodial
// key generation.
package chain

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"unicode/utf8"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/custodial-tipbot/internal/config"
	"github.com/custodial-tipbot/internal/domain/account"
)

// maxNoteBytes is the protocol limit on a transaction note
const maxNoteBytes = 1024

// node is the subset of algod the client calls, kept narrow so tests can fake it
type node interface {
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	AccountAmount(ctx context.Context, address string) (uint64, error)
	SendRawTransaction(ctx context.Context, signed []byte) (string, error)
	PendingInformation(ctx context.Context, txID string) (confirmedRound uint64, poolError string, err error)
}

// sdkNode implements node on top of the algod REST client
type sdkNode struct {
	client *algod.Client
}

func (n *sdkNode) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	return n.client.SuggestedParams().Do(ctx)
}

func (n *sdkNode) AccountAmount(ctx context.Context, address string) (uint64, error) {
	info, err := n.client.AccountInformation(address).Do(ctx)
	if err != nil {
		return 0, err
	}
	return info.Amount, nil
}

func (n *sdkNode) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	return n.client.SendRawTransaction(signed).Do(ctx)
}

func (n *sdkNode) PendingInformation(ctx context.Context, txID string) (uint64, string, error) {
	info, _, err := n.client.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		return 0, "", err
	}
	return info.ConfirmedRound, info.PoolError, nil
}

// AlgodClient is the ledger client over an algod node
type AlgodClient struct {
	node     node
	keystore *Keystore
	logger   *slog.Logger
	cfg      *config.ChainConfig
}

// NewAlgodClient connects to the node described by cfg. Hosted nodes that expect the
// token in a custom header set ALGOD_API_KEY_HEADER.
func NewAlgodClient(logger *slog.Logger, cfg *config.ChainConfig, keystore *Keystore) (*AlgodClient, error) {
	var (
		client *algod.Client
		err    error
	)
	if cfg.APIKeyHeader != "" {
		client, err = algod.MakeClientWithHeaders(cfg.AlgodAddress, "", []*common.Header{
			{Key: cfg.APIKeyHeader, Value: cfg.AlgodToken},
		})
	} else {
		client, err = algod.MakeClient(cfg.AlgodAddress, cfg.AlgodToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}

	return newAlgodClient(logger, cfg, keystore, &sdkNode{client: client}), nil
}

func newAlgodClient(logger *slog.Logger, cfg *config.ChainConfig, keystore *Keystore, n node) *AlgodClient {
	return &AlgodClient{
		node:     n,
		keystore: keystore,
		logger:   logger,
		cfg:      cfg,
	}
}

func (c *AlgodClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrLedgerUnavailable, op, err)
}

// SuggestedFee returns the flat fee the bot pays per transaction, in micro-units
func (c *AlgodClient) SuggestedFee(ctx context.Context) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params, err := c.node.SuggestedParams(ctx)
	if err != nil {
		return 0, unavailable("suggested params", err)
	}
	return int64(params.MinFee), nil
}

// BalanceOf returns the balance of address in micro-units
func (c *AlgodClient) BalanceOf(ctx context.Context, address string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	amount, err := c.node.AccountAmount(ctx, address)
	if err != nil {
		return 0, unavailable("account information", err)
	}
	if amount > math.MaxInt64 {
		return 0, fmt.Errorf("balance of %s overflows int64", address)
	}
	return int64(amount), nil
}

// ValidAddress reports whether addr decodes as a chain address with a valid checksum
func (c *AlgodClient) ValidAddress(addr string) bool {
	_, err := types.DecodeAddress(addr)
	return err == nil
}

// GenerateWallet creates a fresh keypair and returns it with the private key sealed
func (c *AlgodClient) GenerateWallet() (account.Wallet, error) {
	kp := crypto.GenerateAccount()
	defer zero(kp.PrivateKey)

	address := kp.Address.String()
	sealed, err := c.keystore.Seal(address, kp.PrivateKey)
	if err != nil {
		return account.Wallet{}, fmt.Errorf("failed to seal wallet key: %w", err)
	}
	return account.Wallet{Address: address, SealedKey: sealed}, nil
}

// Submit signs the transfer with the sender's custodial key and sends it to the node.
// An error wrapping ErrLedgerUnavailable means nothing was sent. Any other error may
// have reached the node and must not be retried.
func (c *AlgodClient) Submit(ctx context.Context, t Transfer) (string, error) {
	if !c.ValidAddress(t.To) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, t.To)
	}
	if t.Amount < 0 || t.Fee < 0 {
		return "", errors.New("amount and fee must not be negative")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params, err := c.node.SuggestedParams(ctx)
	if err != nil {
		return "", unavailable("suggested params", err)
	}
	params.FlatFee = true
	params.Fee = types.MicroAlgos(t.Fee)

	closeTo := ""
	if t.CloseAccount {
		closeTo = t.To
	}
	tx, err := transaction.MakePaymentTxn(t.FromAddress, t.To, uint64(t.Amount), truncateNote(t.Note), closeTo, params)
	if err != nil {
		return "", fmt.Errorf("failed to build payment transaction: %w", err)
	}

	var signed []byte
	err = c.keystore.WithKey(t.FromAddress, t.SealedKey, func(privateKey []byte) error {
		var signErr error
		_, signed, signErr = crypto.SignTransaction(ed25519.PrivateKey(privateKey), tx)
		return signErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign payment transaction: %w", err)
	}

	txID, err := c.node.SendRawTransaction(ctx, signed)
	if err != nil {
		c.logger.Error("Node refused transaction",
			"from", t.FromAddress,
			"to", t.To,
			"amount", t.Amount,
			"error", err,
		)
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction submitted",
		"chain_tx_id", txID,
		"from", t.FromAddress,
		"to", t.To,
		"amount", t.Amount,
		"fee", t.Fee,
		"close_account", t.CloseAccount,
	)
	return txID, nil
}

// ConfirmationStatus polls the node for a submitted transaction
func (c *AlgodClient) ConfirmationStatus(ctx context.Context, chainTxID string) (Status, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	round, poolError, err := c.node.PendingInformation(ctx, chainTxID)
	if err != nil {
		return Status{}, unavailable("pending transaction information", err)
	}
	switch {
	case round > 0:
		return Status{Kind: StatusConfirmed, Round: round}, nil
	case poolError != "":
		return Status{Kind: StatusRejected, Reason: poolError}, nil
	default:
		return Status{Kind: StatusPending}, nil
	}
}

// truncateNote cuts a note to the ledger's limit without splitting a UTF-8 sequence
func truncateNote(note string) []byte {
	b := []byte(note)
	if len(b) <= maxNoteBytes {
		return b
	}
	n := maxNoteBytes
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return b[:n]
}
