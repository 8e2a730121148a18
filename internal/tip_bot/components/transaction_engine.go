package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/custodial-tipbot/internal/metrics"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/tip_bot/replies"
	"github.com/custodial-tipbot/internal/tip_bot/service"
	"github.com/custodial-tipbot/internal/tip_bot/tracker"
)

// ErrSubmitFailed marks a submission that may have reached the node. It never wraps
// chain.ErrLedgerUnavailable, so the event is not retried.
var ErrSubmitFailed = errors.New("transaction submission failed")

// EngineConfig holds the business rule constants, in micro-units
type EngineConfig struct {
	ReserveMicro      int64
	FirstContactMicro int64
}

type TransactionEngineImpl struct {
	ledger   service.LedgerClient
	txRepo   transaction.Repository
	notifier event.Notifier
	replies  *replies.Renderer
	cfg      EngineConfig
	locks    *identityLocks
	logger   *slog.Logger
	now      func() time.Time
}

func NewTransactionEngine(
	ledger service.LedgerClient,
	txRepo transaction.Repository,
	notifier event.Notifier,
	renderer *replies.Renderer,
	cfg EngineConfig,
	logger *slog.Logger,
) service.TransactionEngine {
	return &TransactionEngineImpl{
		ledger:   ledger,
		txRepo:   txRepo,
		notifier: notifier,
		replies:  renderer,
		cfg:      cfg,
		locks:    newIdentityLocks(),
		logger:   logger,
		now:      time.Now,
	}
}

func (e *TransactionEngineImpl) loggerFor(ctx context.Context) *slog.Logger {
	if id := shared.CorrelationIDFrom(ctx); id != "" {
		return e.logger.With("correlation_id", id)
	}
	return e.logger
}

// Balance reads the on-chain balance of an account in micro-units
func (e *TransactionEngineImpl) Balance(ctx context.Context, acc *account.Account) (int64, error) {
	return e.ledger.BalanceOf(ctx, acc.Wallet.Address)
}

// PrepareTip validates a tip and submits it. Rejections are returned in the Result;
// the error is reserved for infrastructure failures.
func (e *TransactionEngineImpl) PrepareTip(ctx context.Context, req service.TipRequest) (transaction.Result, error) {
	amount := transaction.ToMicro(req.Amount)
	if amount < 1 {
		return transaction.Rejected(transaction.Rejection{Reason: transaction.ReasonZeroAmount, Amount: amount, Required: 1}), nil
	}

	unlock := e.locks.Lock(req.Sender.Identity, req.Receiver.Identity)
	defer unlock()

	fee, err := e.ledger.SuggestedFee(ctx)
	if err != nil {
		return transaction.Result{}, err
	}
	balance, err := e.ledger.BalanceOf(ctx, req.Sender.Wallet.Address)
	if err != nil {
		return transaction.Result{}, err
	}

	if required := amount + fee + e.cfg.ReserveMicro; balance < required {
		return transaction.Rejected(transaction.Rejection{
			Reason: transaction.ReasonInsufficientFunds, Amount: amount, Required: required, Available: balance,
		}), nil
	}
	if rej, err := e.checkFirstContact(ctx, req.Receiver.Wallet.Address, amount); err != nil || rej != nil {
		return rejectedOrEmpty(rej), err
	}

	tx := transaction.New(transaction.KindTip, req.Sender.ID, req.Sender.Identity, amount, req.Note, req.Origin)
	tx.ReceiverID = req.Receiver.ID
	tx.ReceiverIdentity = req.Receiver.Identity
	tx.Destination = req.Receiver.Wallet.Address
	tx.Fee = fee
	tx.Anonymous = req.Anonymous

	return e.submit(ctx, tx, req.Sender.Wallet)
}

// PrepareWithdraw validates a withdrawal and submits it. Withdrawing the whole
// balance closes the wallet: the fee comes out of the amount and no reserve is kept.
func (e *TransactionEngineImpl) PrepareWithdraw(ctx context.Context, req service.WithdrawRequest) (transaction.Result, error) {
	var amount int64
	if !req.All {
		amount = transaction.ToMicro(req.Amount)
		if amount < 1 {
			return transaction.Rejected(transaction.Rejection{Reason: transaction.ReasonZeroAmount, Amount: amount, Required: 1}), nil
		}
	}

	unlock := e.locks.Lock(req.Sender.Identity)
	defer unlock()

	fee, err := e.ledger.SuggestedFee(ctx)
	if err != nil {
		return transaction.Result{}, err
	}
	balance, err := e.ledger.BalanceOf(ctx, req.Sender.Wallet.Address)
	if err != nil {
		return transaction.Result{}, err
	}

	closeAccount := req.All || amount == balance
	if closeAccount {
		amount = balance - fee
		// nothing left once the fee is paid
		if amount < 1 {
			return transaction.Rejected(transaction.Rejection{
				Reason: transaction.ReasonZeroAmount, Amount: max(amount, 0), Required: 1, Available: balance,
			}), nil
		}
	} else if required := amount + fee + e.cfg.ReserveMicro; balance < required {
		return transaction.Rejected(transaction.Rejection{
			Reason: transaction.ReasonInsufficientFunds, Amount: amount, Required: required, Available: balance,
		}), nil
	}
	if rej, err := e.checkFirstContact(ctx, req.Destination, amount); err != nil || rej != nil {
		return rejectedOrEmpty(rej), err
	}

	tx := transaction.New(transaction.KindWithdraw, req.Sender.ID, req.Sender.Identity, amount, req.Note, req.Origin)
	tx.Destination = req.Destination
	tx.Fee = fee
	tx.CloseAccount = closeAccount

	return e.submit(ctx, tx, req.Sender.Wallet)
}

// checkFirstContact enforces the minimum first transfer into an empty wallet
func (e *TransactionEngineImpl) checkFirstContact(ctx context.Context, address string, amount int64) (*transaction.Rejection, error) {
	balance, err := e.ledger.BalanceOf(ctx, address)
	if err != nil {
		return nil, err
	}
	if balance == 0 && amount < e.cfg.FirstContactMicro {
		return &transaction.Rejection{
			Reason: transaction.ReasonBelowFirstContactMinimum, Amount: amount, Required: e.cfg.FirstContactMicro, Available: balance,
		}, nil
	}
	return nil, nil
}

func rejectedOrEmpty(rej *transaction.Rejection) transaction.Result {
	if rej == nil {
		return transaction.Result{}
	}
	return transaction.Rejected(*rej)
}

func (e *TransactionEngineImpl) submit(ctx context.Context, tx *transaction.Transaction, from account.Wallet) (transaction.Result, error) {
	logger := e.loggerFor(ctx)

	id, err := e.txRepo.NextID(ctx)
	if err != nil {
		return transaction.Result{}, fmt.Errorf("failed to allocate transaction id: %w", err)
	}
	tx.ID = id
	if err := tx.MarkValidated(); err != nil {
		return transaction.Result{}, err
	}

	// a signed transfer is sent even if shutdown starts meanwhile
	chainTxID, err := e.ledger.Submit(context.WithoutCancel(ctx), chain.Transfer{
		FromAddress:  from.Address,
		SealedKey:    from.SealedKey,
		To:           tx.Destination,
		Amount:       tx.Amount,
		Fee:          tx.Fee,
		Note:         tx.Note,
		CloseAccount: tx.CloseAccount,
	})
	if err != nil {
		if errors.Is(err, chain.ErrLedgerUnavailable) {
			logger.Warn("Ledger unavailable, transaction not sent", "transaction_id", id, "error", err)
			return transaction.Result{}, err
		}
		logger.Error("Transaction submission failed", "transaction_id", id, "kind", tx.Kind, "error", err)
		return transaction.Result{}, fmt.Errorf("%w: transaction %d: %v", ErrSubmitFailed, id, err)
	}

	if err := tx.MarkSubmitted(chainTxID, e.now()); err != nil {
		return transaction.Result{}, err
	}
	metrics.TransactionsSubmitted.WithLabelValues(string(tx.Kind)).Inc()

	logger.Info("Transaction submitted",
		"transaction_id", tx.ID,
		"kind", tx.Kind,
		"sender", tx.SenderIdentity,
		"destination", tx.Destination,
		"amount", tx.Amount,
		"fee", tx.Fee,
		"close_account", tx.CloseAccount,
		"chain_tx_id", chainTxID,
	)
	return transaction.Submitted(tx), nil
}

// Finalize performs the side effects of a transaction leaving the pending set:
// confirmed transactions are recorded and announced, failed ones reported to the sender.
// A returned error means the outcome was not recorded and must be finalized again;
// notifications that fail after the record is saved are logged and not retried.
func (e *TransactionEngineImpl) Finalize(ctx context.Context, outcome tracker.Outcome) error {
	tx := outcome.Transaction
	logger := e.logger.With("transaction_id", tx.ID, "chain_tx_id", tx.ChainTxID)

	switch tx.State {
	case transaction.StateConfirmed:
		if err := e.txRepo.Save(ctx, tx); err != nil {
			logger.Error("Failed to save confirmed transaction", "error", err)
			return fmt.Errorf("failed to record confirmed transaction: %w", err)
		}
		metrics.TransactionsFinalized.WithLabelValues(string(tx.Kind), string(tx.State)).Inc()
		logger.Info("Transaction confirmed", "kind", tx.Kind, "round", tx.ConfirmedRound)

		var errs []error
		origin := originEvent(tx.Origin)
		switch tx.Kind {
		case transaction.KindTip:
			sent := e.replies.TipSent(tx)
			errs = append(errs, e.notifier.DirectMessage(ctx, tx.SenderIdentity, sent.Subject, sent.Body))
			received := e.replies.TipReceived(tx)
			errs = append(errs, e.notifier.DirectMessage(ctx, tx.ReceiverIdentity, received.Subject, received.Body))
			if origin.EventKind() == event.KindComment {
				errs = append(errs, e.notifier.Reply(ctx, origin, e.replies.TipComment(tx)))
			}
		case transaction.KindWithdraw:
			errs = append(errs, e.notifier.Reply(ctx, origin, e.replies.WithdrawSent(tx)))
		}
		if err := errors.Join(errs...); err != nil {
			logger.Error("Failed to announce confirmed transaction", "error", err)
		}
		return nil

	case transaction.StateRejected, transaction.StateUnconfirmed:
		logger.Warn("Transaction failed", "kind", tx.Kind, "state", tx.State, "reason", tx.FailureReason)
		failed := e.replies.TransactionFailed(tx)
		if err := e.notifier.DirectMessage(ctx, tx.SenderIdentity, failed.Subject, failed.Body); err != nil {
			return fmt.Errorf("failed to report transaction %d to %s: %w", tx.ID, tx.SenderIdentity, err)
		}
		metrics.TransactionsFinalized.WithLabelValues(string(tx.Kind), string(tx.State)).Inc()
		return nil

	default:
		return fmt.Errorf("cannot finalize transaction %d in state %s", tx.ID, tx.State)
	}
}

// originEvent rebuilds enough of the requesting event to reply to it
func originEvent(o transaction.Origin) event.Event {
	if event.Kind(o.EventKind) == event.KindComment {
		return &event.Comment{ID: o.EventID, Author: o.Author}
	}
	return &event.Message{ID: o.EventID, Author: o.Author}
}
