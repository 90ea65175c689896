package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/observability/metrics"
)

// LoansGaugeWorker periodically recomputes the open-loans gauge from the
// loan history so dashboards track today's active loans.
type LoansGaugeWorker struct {
	historyRepo domain.BorrowHistoryRepository
	logger      *slog.Logger
	interval    time.Duration
}

// NewLoansGaugeWorker creates a new loans gauge worker
func NewLoansGaugeWorker(historyRepo domain.BorrowHistoryRepository, logger *slog.Logger, interval time.Duration) *LoansGaugeWorker {
	return &LoansGaugeWorker{
		historyRepo: historyRepo,
		logger:      logger,
		interval:    interval,
	}
}

// Start runs the refresh loop until the context is cancelled. The gauge is
// refreshed once immediately so it is populated before the first tick.
func (w *LoansGaugeWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("loans gauge worker started", slog.Duration("interval", w.interval))

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("loans gauge worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *LoansGaugeWorker) refresh(ctx context.Context) {
	// The loan dates are calendar dates; compare against midnight so a loan
	// still counts on its final day.
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count, err := w.historyRepo.CountOpenOn(ctx, today)
	if err != nil {
		w.logger.Warn("failed to count open loans", slog.String("error", err.Error()))
		return
	}
	metrics.SetOpenLoans(count)
}
