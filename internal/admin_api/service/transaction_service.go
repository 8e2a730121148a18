package service

import (
	"context"

	"github.com/custodial-tipbot/internal/domain/transaction"
)

// PendingSnapshotter exposes the in-flight transactions of the tracker
type PendingSnapshotter interface {
	Snapshot() []transaction.Transaction
}

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	txRepo  transaction.Repository
	pending PendingSnapshotter
}

// NewTransactionService creates a new transaction service
func NewTransactionService(txRepo transaction.Repository, pending PendingSnapshotter) TransactionService {
	return &TransactionServiceImpl{
		txRepo:  txRepo,
		pending: pending,
	}
}

func (s *TransactionServiceImpl) ListTransactions(ctx context.Context, kind transaction.Kind, limit int) ([]*transaction.Transaction, error) {
	return s.txRepo.ListRecent(ctx, kind, limit)
}

func (s *TransactionServiceImpl) GetTransactionByID(ctx context.Context, id uint64) (*transaction.Transaction, error) {
	return s.txRepo.GetByID(ctx, id)
}

func (s *TransactionServiceImpl) ListPending() []transaction.Transaction {
	return s.pending.Snapshot()
}
