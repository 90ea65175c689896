package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
)

type captureHistoryRepo struct {
	mu    sync.Mutex
	days  []time.Time
	count int
}

func (r *captureHistoryRepo) ListByUser(ctx context.Context, userID string) ([]*domain.BorrowHistory, error) {
	return nil, nil
}

func (r *captureHistoryRepo) CountOpenOn(ctx context.Context, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, day)
	return r.count, nil
}

// The history columns hold calendar dates. Counting against a mid-day
// timestamp would miss loans on their final day, so the worker must query
// with midnight of the current day.
func TestRefreshQueriesCalendarDay(t *testing.T) {
	repo := &captureHistoryRepo{count: 3}
	w := NewLoansGaugeWorker(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)

	w.refresh(context.Background())

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.days) != 1 {
		t.Fatalf("expected 1 count query, got %d", len(repo.days))
	}

	day := repo.days[0]
	if day.Location() != time.UTC {
		t.Errorf("expected UTC day, got %v", day.Location())
	}
	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 || day.Nanosecond() != 0 {
		t.Errorf("expected midnight, got %v", day)
	}

	now := time.Now().UTC()
	if day.Year() != now.Year() || day.Month() != now.Month() || day.Day() != now.Day() {
		t.Errorf("expected today's date, got %v", day)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	repo := &captureHistoryRepo{}
	w := NewLoansGaugeWorker(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.days) == 0 {
		t.Error("worker never refreshed the gauge")
	}
}
