package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory repository fakes shared by the service tests.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return domain.Invalid("username", "already taken")
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

type fakeBookRepo struct {
	mu    sync.Mutex
	books map[string]*domain.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: map[string]*domain.Book{}}
}

func (r *fakeBookRepo) Create(ctx context.Context, book *domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.UniqueIdentifier == book.UniqueIdentifier {
			return domain.Invalid("unique_identifier", "already in the catalog")
		}
	}
	cp := *book
	r.books[book.ID] = &cp
	return nil
}

func (r *fakeBookRepo) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("book: %w", domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookRepo) List(ctx context.Context) ([]*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Book, 0, len(r.books))
	for _, b := range r.books {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

type fakeBorrowRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.BorrowRequest
	history  *fakeHistoryRepo

	// failDecide forces the transactional decision to fail, for testing
	// that nothing leaks on error.
	failDecide bool
}

func newFakeBorrowRepo(history *fakeHistoryRepo) *fakeBorrowRepo {
	return &fakeBorrowRepo{
		requests: map[string]*domain.BorrowRequest{},
		history:  history,
	}
}

func (r *fakeBorrowRepo) Create(ctx context.Context, req *domain.BorrowRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeBorrowRepo) GetByID(ctx context.Context, id string) (*domain.BorrowRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("borrow request: %w", domain.ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

func (r *fakeBorrowRepo) List(ctx context.Context) ([]*domain.BorrowRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.BorrowRequest, 0, len(r.requests))
	for _, req := range r.requests {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeBorrowRepo) HasApprovedOverlap(ctx context.Context, bookID string, start, end time.Time, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.BookID != bookID || req.Status != domain.StatusApproved {
			continue
		}
		if excludeID != "" && req.ID == excludeID {
			continue
		}
		if domain.Overlaps(req.StartDate, req.EndDate, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBorrowRepo) Decide(ctx context.Context, id string, status domain.RequestStatus, history *domain.BorrowHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDecide {
		return fmt.Errorf("store unavailable")
	}
	req, ok := r.requests[id]
	if !ok {
		return fmt.Errorf("borrow request: %w", domain.ErrNotFound)
	}
	req.Status = status
	if history != nil {
		r.history.add(history)
	}
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*domain.BorrowHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) add(h *domain.BorrowHistory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *h
	r.records = append(r.records, &cp)
}

func (r *fakeHistoryRepo) ListByUser(ctx context.Context, userID string) ([]*domain.BorrowHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.BorrowHistory{}
	for _, h := range r.records {
		if h.UserID == userID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) CountOpenOn(ctx context.Context, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, h := range r.records {
		if !day.Before(h.BorrowDate) && !day.After(h.ReturnDate) {
			count++
		}
	}
	return count, nil
}
