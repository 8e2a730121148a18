package service

import (
	"context"
	"fmt"
	"time"

	"github.com/custodial-tipbot/internal/domain/audit"
)

// CommandServiceImpl implements the CommandService interface
type CommandServiceImpl struct {
	auditRepo audit.Repository
	now       func() time.Time
}

// NewCommandService creates a new command service
func NewCommandService(auditRepo audit.Repository) CommandService {
	return &CommandServiceImpl{
		auditRepo: auditRepo,
		now:       time.Now,
	}
}

// GetCommandsByAuthor retrieves paginated commands for an author with total count
func (s *CommandServiceImpl) GetCommandsByAuthor(ctx context.Context, author string, page, perPage int) ([]*audit.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.auditRepo.GetByAuthor(ctx, author, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get commands of %s: %w", author, err)
	}

	total, err := s.auditRepo.CountByAuthor(ctx, author)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count commands of %s: %w", author, err)
	}
	return entries, total, nil
}

// GetRecentCommands retrieves the commands created in the last window
func (s *CommandServiceImpl) GetRecentCommands(ctx context.Context, window time.Duration, page, perPage int) ([]*audit.Entry, error) {
	end := s.now().UTC()
	entries, err := s.auditRepo.GetByTimeRange(ctx, end.Add(-window), end, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent commands: %w", err)
	}
	return entries, nil
}

func (s *CommandServiceImpl) GetCommandByID(ctx context.Context, commandID uint64) (*audit.Entry, error) {
	return s.auditRepo.GetByCommandID(ctx, commandID)
}
