package service

import (
	"context"
	"time"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/transaction"
)

// AccountService defines the read operations on custodial accounts
type AccountService interface {
	// GetAccount returns the account of identity and its on-chain balance in micro-units.
	// Returns ErrAccountNotFound if the identity never used the bot
	GetAccount(ctx context.Context, identity string) (*account.Account, int64, error)

	// ListChannels returns the channels the bot answers comments in
	ListChannels(ctx context.Context) ([]string, error)
}

// TransactionService defines the read operations on transfers
type TransactionService interface {
	// ListTransactions returns the newest finalized transactions of a kind
	ListTransactions(ctx context.Context, kind transaction.Kind, limit int) ([]*transaction.Transaction, error)

	// GetTransactionByID returns ErrTransactionNotFound if no record exists
	GetTransactionByID(ctx context.Context, id uint64) (*transaction.Transaction, error)

	// ListPending returns the submitted transactions awaiting confirmation, oldest first
	ListPending() []transaction.Transaction
}

// CommandService defines the read operations on the command audit log
type CommandService interface {
	// GetCommandsByAuthor returns a page of an author's commands and the author's total count
	GetCommandsByAuthor(ctx context.Context, author string, page, perPage int) ([]*audit.Entry, int64, error)

	// GetRecentCommands returns a page of the commands received within the window
	GetRecentCommands(ctx context.Context, window time.Duration, page, perPage int) ([]*audit.Entry, error)

	// GetCommandByID returns ErrEntryNotFound if the command was never recorded
	GetCommandByID(ctx context.Context, commandID uint64) (*audit.Entry, error)
}
