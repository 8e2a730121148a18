package handler

import (
	"errors"
	"log/slog"

	"github.com/custodial-tipbot/internal/admin_api/service"
	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/gin-gonic/gin"
)

// AccountHandler serves account and channel lookups
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// GetByIdentity returns an account with its live balance, 404 if the identity never used the bot
func (h *AccountHandler) GetByIdentity(c *gin.Context) {
	identity := c.Param("identity")

	acc, balance, err := h.accountService.GetAccount(c.Request.Context(), identity)
	switch {
	case err == nil:
		RespondOK(c, mapAccountToResponse(acc, balance))
	case errors.Is(err, account.ErrAccountNotFound{}), errors.Is(err, account.ErrEmptyIdentity):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, chain.ErrLedgerUnavailable):
		h.logger.Warn("Ledger unavailable while reading balance", "identity", identity, "error", err)
		RespondServiceUnavailable(c, "Ledger unavailable")
	default:
		h.logger.Error("Failed to get account", "identity", identity, "error", err)
		RespondInternalError(c)
	}
}

// ListChannels returns the channels whose comments are answered
func (h *AccountHandler) ListChannels(c *gin.Context) {
	channels, err := h.accountService.ListChannels(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list channels", "error", err)
		RespondInternalError(c)
		return
	}
	if channels == nil {
		channels = []string{}
	}
	RespondOK(c, gin.H{"channels": channels})
}
