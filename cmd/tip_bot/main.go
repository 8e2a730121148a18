package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/custodial-tipbot/internal/admin_api"
	adminhandler "github.com/custodial-tipbot/internal/admin_api/handler"
	adminservice "github.com/custodial-tipbot/internal/admin_api/service"
	"github.com/custodial-tipbot/internal/config"
	"github.com/custodial-tipbot/internal/data/mongo"
	"github.com/custodial-tipbot/internal/data/postgres"
	"github.com/custodial-tipbot/internal/data/redis"
	"github.com/custodial-tipbot/internal/logger"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/platform/directory"
	"github.com/custodial-tipbot/internal/platform/messaging/consumers"
	"github.com/custodial-tipbot/internal/platform/messaging/producers"
	"github.com/custodial-tipbot/internal/platform/persistence"
	"github.com/custodial-tipbot/internal/tip_bot/components"
	"github.com/custodial-tipbot/internal/tip_bot/consumer"
	"github.com/custodial-tipbot/internal/tip_bot/outbox_poller"
	"github.com/custodial-tipbot/internal/tip_bot/replies"
	"github.com/custodial-tipbot/internal/tip_bot/scheduler"
	"github.com/custodial-tipbot/internal/tip_bot/tracker"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("tip_bot")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting Tip Bot",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"bot_name", cfg.Bot.Name,
	)

	// Stores: Redis holds accounts, markers and transfers, Postgres the outbox, Mongo the audit log
	redisDB, err := persistence.NewRedisDB(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	kv := redisDB.Client()
	accountRepo := redis.NewAccountRepository(log, kv)
	txRepo := redis.NewTransactionRepository(log, kv)
	channelRepo := redis.NewChannelRepository(kv)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create audit indexes", "error", err)
		os.Exit(1)
	}

	// Chain adapter
	keystore, err := chain.NewKeystore(cfg.Keystore.MasterKey)
	if err != nil {
		log.Error("Failed to initialize keystore", "error", err)
		os.Exit(1)
	}
	ledger, err := chain.NewAlgodClient(log.With("component", "algod"), &cfg.Chain, keystore)
	if err != nil {
		log.Error("Failed to initialize algod client", "error", err)
		os.Exit(1)
	}

	// Platform bridge
	eventSource := consumers.NewKafkaEventSource(appCtx, log, &cfg.Kafka)
	notificationProducer, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification producer", "error", err)
		os.Exit(1)
	}
	// nil when KAFKA_DLQ_TOPIC is empty; the handler logs and drops abandoned events then
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	identityDirectory := directory.NewClient(log.With("component", "directory"), &cfg.Directory)

	renderer, err := replies.NewRenderer(cfg.Bot.Name, cfg.Bot.ReserveMicro)
	if err != nil {
		log.Error("Failed to parse reply templates", "error", err)
		os.Exit(1)
	}

	pending := tracker.New(log.With("component", "tracker"), ledger, redis.NewPendingRepository(kv), cfg.Bot.MaxConfirmationPolls)
	restored, err := pending.Restore(appCtx)
	if err != nil {
		log.Error("Failed to restore pending transactions", "error", err)
		os.Exit(1)
	}
	log.Info("Restored pending transactions", "count", restored)

	c := components.CreateDispatchService(components.Dependencies{
		AccountRepo: accountRepo,
		TxRepo:      txRepo,
		OutboxRepo:  outboxRepo,
		AuditRepo:   auditRepo,
		CommandIDs:  redis.NewCounterRepository(kv),
		Channels:    channelRepo,
		Ledger:      ledger,
		Directory:   identityDirectory,
		Tracker:     pending,
		Replies:     renderer,
	}, log, cfg)

	eventHandler := consumer.NewEventHandler(log.With("component", "event_handler"), c.Dispatcher, c.Notifier, c.Auditor, dlqProducer, renderer)
	loop := scheduler.New(
		log.With("component", "event_loop"),
		scheduler.ConfigFromBot(&cfg.Bot),
		eventSource,
		redis.NewMarkerRepository(kv),
		channelRepo,
		eventHandler,
		pending,
		c.Engine,
	)

	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		outbox_poller.NewNotificationPublisher(outboxRepo, notificationProducer, log),
		log.With("component", "outbox_poller"),
	)

	server := admin_api.NewServer(log, cfg,
		adminservice.NewAccountService(c.Registry, ledger, channelRepo),
		adminservice.NewTransactionService(txRepo, pending),
		adminservice.NewCommandService(auditRepo),
		adminhandler.HealthCheck{Name: "redis", Pinger: redisDB},
		adminhandler.HealthCheck{Name: "postgres", Pinger: postgresDB},
		adminhandler.HealthCheck{Name: "mongodb", Pinger: mongoDB},
	)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting event loop",
			"topic", cfg.Kafka.EventsTopic,
			"group", cfg.Kafka.ConsumerGroup,
			"cycle_interval", cfg.Bot.CycleInterval.String(),
		)
		loop.Run(appCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case serviceErr = <-errChan:
		log.Error("Service error occurred", "error", serviceErr)
	}

	log.Info("Starting graceful shutdown...")
	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping admin server", "error", err)
	}

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()
	select {
	case <-wgChan:
		log.Info("Event loop and outbox poller stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if c.Pool != nil {
		c.Pool.Shutdown()
	}

	// replies queued by the last cycle
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	if err := poller.Flush(flushCtx); err != nil {
		log.Error("Error flushing outbox", "error", err)
	}
	cancelFlush()

	if err := eventSource.Close(); err != nil {
		log.Error("Error closing event source", "error", err)
	}
	if err := notificationProducer.Close(); err != nil {
		log.Error("Error closing notification producer", "error", err)
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ producer", "error", err)
	}
	postgresDB.Close()
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}
	if err := redisDB.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Tip Bot shutdown completed with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Tip Bot shutdown completed successfully")
}
