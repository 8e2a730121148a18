package handler

import (
	"time"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/transaction"
)

// AccountResponse represents a custodial account in API responses
type AccountResponse struct {
	ID           uint64 `json:"id"`
	Identity     string `json:"identity"`
	Address      string `json:"address"`
	Balance      string `json:"balance"`
	BalanceMicro int64  `json:"balance_micro"`
	CreatedAt    string `json:"created_at"`
}

// TransactionResponse represents a transfer in API responses
type TransactionResponse struct {
	ID            uint64 `json:"id"`
	Kind          string `json:"kind"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver,omitempty"`
	Destination   string `json:"destination"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Note          string `json:"note,omitempty"`
	Anonymous     bool   `json:"anonymous,omitempty"`
	CloseAccount  bool   `json:"close_account,omitempty"`
	ChainTxID     string `json:"chain_tx_id,omitempty"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason,omitempty"`
	EventID       string `json:"event_id"`
	CreatedAt     string `json:"created_at"`
	ConfirmedAt   string `json:"confirmed_at,omitempty"`
}

// CommandResponse represents an audited command in API responses
type CommandResponse struct {
	CommandID     uint64 `json:"command_id"`
	EventID       string `json:"event_id"`
	EventKind     string `json:"event_kind"`
	Author        string `json:"author"`
	Body          string `json:"body"`
	Outcome       string `json:"outcome"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

// TransactionListParams selects the finalized transactions to list
type TransactionListParams struct {
	Kind  string `form:"kind,default=tips" binding:"oneof=tips withdrawals"`
	Limit int    `form:"limit,default=20" binding:"min=1,max=100"`
}

// CommandListParams selects audited commands; without an author the last day is listed
type CommandListParams struct {
	Author string `form:"author"`
	PaginationParams
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func (p TransactionListParams) kind() transaction.Kind {
	if p.Kind == "withdrawals" {
		return transaction.KindWithdraw
	}
	return transaction.KindTip
}

func mapAccountToResponse(acc *account.Account, balance int64) AccountResponse {
	return AccountResponse{
		ID:           acc.ID,
		Identity:     acc.Identity,
		Address:      acc.Wallet.Address,
		Balance:      transaction.FormatUnits(balance),
		BalanceMicro: balance,
		CreatedAt:    acc.CreatedAt.Format(time.RFC3339),
	}
}

func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:            tx.ID,
		Kind:          string(tx.Kind),
		Sender:        tx.SenderIdentity,
		Receiver:      tx.ReceiverIdentity,
		Destination:   tx.Destination,
		Amount:        transaction.FormatUnits(tx.Amount),
		Fee:           transaction.FormatUnits(tx.Fee),
		Note:          tx.Note,
		Anonymous:     tx.Anonymous,
		CloseAccount:  tx.CloseAccount,
		ChainTxID:     tx.ChainTxID,
		State:         string(tx.State),
		FailureReason: tx.FailureReason,
		EventID:       tx.Origin.EventID,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.ConfirmedAt != nil {
		response.ConfirmedAt = tx.ConfirmedAt.Format(time.RFC3339)
	}
	return response
}

func mapEntryToResponse(entry *audit.Entry) CommandResponse {
	response := CommandResponse{
		CommandID:     entry.CommandID,
		EventID:       entry.EventID,
		EventKind:     entry.EventKind,
		Author:        entry.Author,
		Body:          entry.Body,
		Outcome:       string(entry.Outcome),
		Detail:        entry.Detail,
		CorrelationID: entry.CorrelationID,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.ProcessedAt != nil {
		response.ProcessedAt = entry.ProcessedAt.Format(time.RFC3339)
	}
	return response
}
