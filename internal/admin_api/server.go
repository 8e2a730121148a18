package admin_api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodial-tipbot/internal/admin_api/handler"
	"github.com/custodial-tipbot/internal/admin_api/service"
	"github.com/custodial-tipbot/internal/config"
	"github.com/gin-gonic/gin"
)

// Server exposes accounts, transfers and the command audit log to operators
type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	httpRouter      *gin.Engine
	shutdownTimeout time.Duration
}

// NewServer creates and configures the admin HTTP server. /health pings every
// store in checks.
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	accountService service.AccountService,
	transactionService service.TransactionService,
	commandService service.CommandService,
	checks ...handler.HealthCheck,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()
	setupRouter(log, httpRouter,
		handler.NewAccountHandler(log, accountService),
		handler.NewTransactionHandler(log, transactionService),
		handler.NewCommandHandler(log, commandService),
		handler.NewHealthHandler(log, checks...),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Start listens until Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting admin HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping admin HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}
