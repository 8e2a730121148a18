package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/custodial-tipbot/internal/admin_api/service"
	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/gin-gonic/gin"
)

// TransactionHandler serves finalized and pending transfers
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// List returns the newest confirmed tips or withdrawals
func (h *TransactionHandler) List(c *gin.Context) {
	var params TransactionListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	txs, err := h.transactionService.ListTransactions(c.Request.Context(), params.kind(), params.Limit)
	if err != nil {
		h.logger.Error("Failed to list transactions", "kind", params.Kind, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		response = append(response, mapTransactionToResponse(tx))
	}
	RespondOK(c, response)
}

// GetByID returns one finalized transaction, 404 if no record exists
func (h *TransactionHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil || id == 0 {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	tx, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, mapTransactionToResponse(tx))
}

// Pending returns the transactions still awaiting confirmation
func (h *TransactionHandler) Pending(c *gin.Context) {
	pending := h.transactionService.ListPending()
	response := make([]TransactionResponse, 0, len(pending))
	for i := range pending {
		response = append(response, mapTransactionToResponse(&pending[i]))
	}
	RespondOK(c, response)
}
