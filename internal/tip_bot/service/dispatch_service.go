package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/channel"
	"github.com/custodial-tipbot/internal/domain/command"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/custodial-tipbot/internal/metrics"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/tip_bot/replies"
	"github.com/google/uuid"
)

type DispatchServiceImpl struct {
	parser   CommandParser
	registry AccountRegistry
	engine   TransactionEngine
	tracker  PendingTracker
	auditor  CommandAuditor
	channels channel.Repository
	notifier event.Notifier
	replies  *replies.Renderer
	logger   *slog.Logger
}

func NewDispatchService(
	parser CommandParser,
	registry AccountRegistry,
	engine TransactionEngine,
	tracker PendingTracker,
	auditor CommandAuditor,
	channels channel.Repository,
	notifier event.Notifier,
	renderer *replies.Renderer,
	logger *slog.Logger,
) DispatchService {
	return &DispatchServiceImpl{
		parser:   parser,
		registry: registry,
		engine:   engine,
		tracker:  tracker,
		auditor:  auditor,
		channels: channels,
		notifier: notifier,
		replies:  renderer,
		logger:   logger,
	}
}

// Dispatch parses and executes one event. A nil return means the event is done with,
// including when the user was told their command was rejected. An error wrapping
// chain.ErrLedgerUnavailable means nothing was submitted and the event may be retried;
// any other error was unexpected and the caller owes the author a generic reply.
func (s *DispatchServiceImpl) Dispatch(ctx context.Context, ev event.Event) error {
	correlationID := shared.CorrelationIDFrom(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
		ctx = shared.WithCorrelationID(ctx, correlationID)
	}
	logger := s.logger.With("correlation_id", correlationID, "event_id", ev.EventID())

	logger.Info("Dispatching event", "kind", ev.EventKind(), "author", ev.AuthorName())

	commandID, err := s.auditor.Begin(ctx, ev)
	if err != nil {
		logger.Error("Failed to record command", "error", err)
	}

	outcome, detail, err := s.execute(ctx, logger, ev)
	if err != nil {
		outcome, detail = audit.OutcomeFailed, err.Error()
		if errors.Is(err, chain.ErrLedgerUnavailable) {
			outcome = audit.OutcomeRetrying
		}
	}
	metrics.EventsProcessed.WithLabelValues(string(outcome)).Inc()

	if commandID != 0 {
		if cErr := s.auditor.Complete(ctx, commandID, outcome, detail); cErr != nil {
			logger.Error("Failed to record command outcome", "command_id", commandID, "error", cErr)
		}
	}

	logger.Info("Event dispatched", "outcome", outcome, "detail", detail)
	return err
}

func (s *DispatchServiceImpl) execute(ctx context.Context, logger *slog.Logger, ev event.Event) (audit.Outcome, string, error) {
	// 1. Parse
	cmd, err := s.parser.Parse(ctx, ev)
	if err != nil {
		var parseErr *command.ParseError
		if errors.As(err, &parseErr) {
			logger.Info("Command rejected by parser", "kind", parseErr.Kind)
			s.direct(ctx, logger, ev.AuthorName(), s.replies.ParseError(parseErr))
			return audit.OutcomeRejected, parseErr.Error(), nil
		}
		return "", "", fmt.Errorf("failed to parse command: %w", err)
	}

	// 2. Resolve the author
	author, created, err := s.registry.GetOrCreate(ctx, ev.AuthorName())
	if err != nil {
		return "", "", fmt.Errorf("failed to load account for %s: %w", ev.AuthorName(), err)
	}
	if created {
		s.direct(ctx, logger, author.Identity, s.replies.Welcome(author.Identity, author.Wallet.Address))
		switch cmd.(type) {
		case command.WalletQuery:
			return audit.OutcomeExecuted, "wallet created", nil
		case command.Tip, command.Withdraw:
			// messages fall through so the engine reports its own rejection
			if _, isComment := ev.(*event.Comment); isComment {
				s.direct(ctx, logger, author.Identity, s.replies.NoWallet(author.Wallet.Address))
				return audit.OutcomeRejected, "author had no wallet", nil
			}
		}
	}

	origin := transaction.Origin{
		EventID:   ev.EventID(),
		EventKind: string(ev.EventKind()),
		Author:    author.Identity,
	}

	// 3. Execute
	switch c := cmd.(type) {
	case command.Tip:
		receiver, rcvCreated, err := s.registry.GetOrCreate(ctx, c.Receiver)
		if err != nil {
			return "", "", fmt.Errorf("failed to load account for %s: %w", c.Receiver, err)
		}
		if rcvCreated {
			s.direct(ctx, logger, receiver.Identity, s.replies.Welcome(receiver.Identity, receiver.Wallet.Address))
		}
		res, err := s.engine.PrepareTip(ctx, TipRequest{
			Sender:    author,
			Receiver:  receiver,
			Amount:    c.Amount,
			Note:      c.Note,
			Anonymous: c.Anonymous,
			Origin:    origin,
		})
		if err != nil {
			return "", "", err
		}
		return s.settle(ctx, logger, transaction.KindTip, author, res)

	case command.Withdraw:
		res, err := s.engine.PrepareWithdraw(ctx, WithdrawRequest{
			Sender:      author,
			Amount:      c.Amount,
			All:         c.All,
			Destination: c.Destination,
			Note:        c.Note,
			Origin:      origin,
		})
		if err != nil {
			return "", "", err
		}
		return s.settle(ctx, logger, transaction.KindWithdraw, author, res)

	case command.WalletQuery:
		balance, err := s.engine.Balance(ctx, author)
		if err != nil {
			return "", "", err
		}
		s.reply(ctx, logger, ev, s.replies.Wallet(author.Wallet.Address, balance))
		return audit.OutcomeExecuted, "", nil

	case command.ChannelAdmin:
		return s.administer(ctx, logger, ev, c)

	default:
		return "", "", fmt.Errorf("unhandled command type %T", cmd)
	}
}

// settle reports a rejection to the sender or hands a submitted transaction to the tracker
func (s *DispatchServiceImpl) settle(ctx context.Context, logger *slog.Logger, kind transaction.Kind, sender *account.Account, res transaction.Result) (audit.Outcome, string, error) {
	if res.IsRejected() {
		logger.Info("Transaction rejected", "kind", kind, "reason", res.Rejection.Reason,
			"required", res.Rejection.Required, "available", res.Rejection.Available)
		s.direct(ctx, logger, sender.Identity, s.replies.Rejection(kind, *res.Rejection))
		return audit.OutcomeRejected, string(res.Rejection.Reason), nil
	}

	tx := res.Submitted
	if err := s.tracker.Add(ctx, tx); err != nil {
		// in-memory tracking still holds it
		logger.Error("Failed to persist pending transaction", "transaction_id", tx.ID, "chain_tx_id", tx.ChainTxID, "error", err)
	}
	return audit.OutcomeExecuted, fmt.Sprintf("transaction %d submitted as %s", tx.ID, tx.ChainTxID), nil
}

func (s *DispatchServiceImpl) administer(ctx context.Context, logger *slog.Logger, ev event.Event, c command.ChannelAdmin) (audit.Outcome, string, error) {
	switch c.Action {
	case command.ChannelAdd:
		if err := s.channels.Add(ctx, c.Channel); err != nil {
			return "", "", fmt.Errorf("failed to add channel %s: %w", c.Channel, err)
		}
		s.reply(ctx, logger, ev, s.replies.ChannelAdded(c.Channel))
	case command.ChannelRemove:
		if err := s.channels.Remove(ctx, c.Channel); err != nil {
			return "", "", fmt.Errorf("failed to remove channel %s: %w", c.Channel, err)
		}
		s.reply(ctx, logger, ev, s.replies.ChannelRemoved(c.Channel))
	case command.ChannelList:
		names, err := s.channels.List(ctx)
		if err != nil {
			return "", "", fmt.Errorf("failed to list channels: %w", err)
		}
		s.reply(ctx, logger, ev, s.replies.ChannelList(names))
	default:
		return "", "", fmt.Errorf("unhandled channel action %q", c.Action)
	}
	logger.Info("Channel command executed", "action", c.Action, "channel", c.Channel)
	return audit.OutcomeExecuted, string(c.Action) + " " + c.Channel, nil
}

func (s *DispatchServiceImpl) direct(ctx context.Context, logger *slog.Logger, identity string, msg replies.Message) {
	if err := s.notifier.DirectMessage(ctx, identity, msg.Subject, msg.Body); err != nil {
		logger.Error("Failed to queue direct message", "recipient", identity, "error", err)
	}
}

func (s *DispatchServiceImpl) reply(ctx context.Context, logger *slog.Logger, ev event.Event, text string) {
	if err := s.notifier.Reply(ctx, ev, text); err != nil {
		logger.Error("Failed to queue reply", "error", err)
	}
}
