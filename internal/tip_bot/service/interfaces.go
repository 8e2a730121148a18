package service

import (
	"context"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/command"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/tip_bot/tracker"
	"github.com/shopspring/decimal"
)

// DispatchService runs one platform event through parsing and execution
type DispatchService interface {
	Dispatch(ctx context.Context, ev event.Event) error
}

// BatchDispatcher dispatches a whole batch concurrently; errs[i] belongs to events[i]
type BatchDispatcher interface {
	DispatchAll(ctx context.Context, events []event.Event) []error
}

// AccountRegistry maps identities to custodial accounts
type AccountRegistry interface {
	// GetOrCreate returns the account for identity, creating its wallet on first use.
	// created is true only for the call that created the wallet.
	GetOrCreate(ctx context.Context, identity string) (acc *account.Account, created bool, err error)
	Lookup(ctx context.Context, identity string) (*account.Account, error)
}

// CommandParser turns event text into a validated command.
// Rejections come back as *command.ParseError.
type CommandParser interface {
	Parse(ctx context.Context, ev event.Event) (command.Command, error)
}

// TransactionEngine validates and submits transfers and performs confirmation side effects
type TransactionEngine interface {
	PrepareTip(ctx context.Context, req TipRequest) (transaction.Result, error)
	PrepareWithdraw(ctx context.Context, req WithdrawRequest) (transaction.Result, error)
	Finalize(ctx context.Context, outcome tracker.Outcome) error
	Balance(ctx context.Context, acc *account.Account) (int64, error)
}

// PendingTracker follows submitted transactions to finality
type PendingTracker interface {
	Add(ctx context.Context, tx *transaction.Transaction) error
}

// CommandAuditor records every dispatched event and how it ended
type CommandAuditor interface {
	Begin(ctx context.Context, ev event.Event) (commandID uint64, err error)
	Complete(ctx context.Context, commandID uint64, outcome audit.Outcome, detail string) error
	Abandon(ctx context.Context, eventID, reason string) error
}

// LedgerClient is the chain adapter the components sign, submit and query through
type LedgerClient interface {
	SuggestedFee(ctx context.Context) (int64, error)
	BalanceOf(ctx context.Context, address string) (int64, error)
	Submit(ctx context.Context, t chain.Transfer) (string, error)
	ConfirmationStatus(ctx context.Context, chainTxID string) (chain.Status, error)
	ValidAddress(addr string) bool
	GenerateWallet() (account.Wallet, error)
}

// Directory answers identity questions about the platform
type Directory interface {
	IdentityExists(ctx context.Context, identity string) (bool, error)
	ChannelExists(ctx context.Context, channel string) (bool, error)
	IsModerator(ctx context.Context, identity, channel string) (bool, error)
}

// TipRequest asks for Amount units to move from Sender to Receiver
type TipRequest struct {
	Sender    *account.Account
	Receiver  *account.Account
	Amount    decimal.Decimal
	Note      string
	Anonymous bool
	Origin    transaction.Origin
}

// WithdrawRequest asks for Amount units, or everything when All is set, to leave
// Sender's wallet for Destination
type WithdrawRequest struct {
	Sender      *account.Account
	Amount      decimal.Decimal
	All         bool
	Destination string
	Note        string
	Origin      transaction.Origin
}
