package components

import (
	"log/slog"

	"github.com/custodial-tipbot/internal/config"
	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/channel"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/outbox"
	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/custodial-tipbot/internal/tip_bot/replies"
	"github.com/custodial-tipbot/internal/tip_bot/service"
)

// Dependencies are the stores and platform clients the components are built on
type Dependencies struct {
	AccountRepo account.Repository
	TxRepo      transaction.Repository
	OutboxRepo  outbox.Repository
	AuditRepo   audit.Repository
	CommandIDs  CommandIDAllocator
	Channels    channel.Repository
	Ledger      service.LedgerClient
	Directory   service.Directory
	Tracker     service.PendingTracker
	Replies     *replies.Renderer
}

// Components are the wired pipeline pieces the event loop and admin API need
type Components struct {
	Registry   service.AccountRegistry
	Engine     service.TransactionEngine
	Auditor    service.CommandAuditor
	Notifier   event.Notifier
	Dispatcher service.DispatchService
	// Pool is nil when dispatch runs on the calling goroutine
	Pool *service.WorkerPoolDispatchService
}

// CreateDispatchService creates the dispatch service with all its dependencies.
func CreateDispatchService(deps Dependencies, logger *slog.Logger, cfg *config.Config) *Components {
	notifier := NewOutboxNotifier(deps.OutboxRepo, logger.With("component", "notifier"))
	registry := NewAccountRegistry(deps.AccountRepo, deps.Ledger, logger.With("component", "registry"))
	parser := NewCommandParser(deps.Directory, deps.Ledger, cfg.Bot.Prefixes(), logger.With("component", "parser"))
	engine := NewTransactionEngine(deps.Ledger, deps.TxRepo, notifier, deps.Replies, EngineConfig{
		ReserveMicro:      cfg.Bot.ReserveMicro,
		FirstContactMicro: cfg.Bot.FirstContactMicro,
	}, logger.With("component", "engine"))
	auditor := NewCommandAuditor(deps.AuditRepo, deps.CommandIDs, logger.With("component", "auditor"))

	c := &Components{
		Registry: registry,
		Engine:   engine,
		Auditor:  auditor,
		Notifier: notifier,
	}

	baseService := service.NewDispatchService(
		parser,
		registry,
		engine,
		deps.Tracker,
		auditor,
		deps.Channels,
		notifier,
		deps.Replies,
		logger,
	)
	c.Dispatcher = baseService

	if cfg.WorkerPool.Size <= 1 {
		logger.Info("Dispatching events sequentially")
		return c
	}

	workerPoolService, err := service.NewWorkerPoolDispatchService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return c
	}

	logger.Info("Created worker pool dispatch service", "pool_size", cfg.WorkerPool.Size)
	c.Dispatcher = workerPoolService
	c.Pool = workerPoolService
	return c
}
