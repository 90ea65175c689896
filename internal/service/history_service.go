package service

import (
	"context"
	"log/slog"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/security"
)

// HistoryService serves loan history. Patrons see only their own records;
// librarians may read anyone's.
type HistoryService struct {
	historyRepo domain.BorrowHistoryRepository
	gate        *security.Gate
	logger      *slog.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(historyRepo domain.BorrowHistoryRepository, gate *security.Gate, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}

	return &HistoryService{
		historyRepo: historyRepo,
		gate:        gate,
		logger:      logger,
	}
}

// ListForUser returns one user's loan history. Librarian only. A user with
// no loans, known or not, yields an empty list.
func (s *HistoryService) ListForUser(ctx context.Context, p security.Principal, userID string) ([]*domain.BorrowHistory, error) {
	if err := s.gate.RequireLibrarian(p, "view user history"); err != nil {
		return nil, err
	}

	return s.historyRepo.ListByUser(ctx, userID)
}

// ListMine returns the caller's own loan history
func (s *HistoryService) ListMine(ctx context.Context, p security.Principal) ([]*domain.BorrowHistory, error) {
	return s.historyRepo.ListByUser(ctx, p.UserID)
}
