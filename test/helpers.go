package test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/events"
	"github.com/yourorg/lendingdesk/internal/handler"
	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/audit"
	"github.com/yourorg/lendingdesk/internal/security/auth"
	"github.com/yourorg/lendingdesk/internal/security/middleware"
	"github.com/yourorg/lendingdesk/internal/service"
)

// TestServerHelper runs the full HTTP surface against in-memory stores
type TestServerHelper struct {
	Server *httptest.Server
	Tokens *auth.TokenManager

	Users    *memoryUserRepo
	Books    *memoryBookRepo
	Requests *memoryBorrowRepo
	History  *memoryHistoryRepo
}

// NewTestServer wires the handlers the way cmd/server does, minus the
// external dependencies.
func NewTestServer(t *testing.T) *TestServerHelper {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := newMemoryUserRepo()
	books := newMemoryBookRepo()
	history := newMemoryHistoryRepo()
	requests := newMemoryBorrowRepo(history)

	tokens := auth.NewTokenManager("test-secret", "lendingdesk", time.Hour)
	gate := security.NewGate(log)
	auditLogger := audit.NewLogger(log)
	broadcaster := events.NewBroadcaster()

	authService := service.NewAuthService(users, tokens, log)
	accountService := service.NewAccountService(users, gate, auditLogger, log)
	catalogService := service.NewCatalogService(books, nil, time.Second, log)
	borrowService := service.NewBorrowService(requests, books, gate, broadcaster, auditLogger, log, false)
	historyService := service.NewHistoryService(history, gate, log)

	mux := http.NewServeMux()
	mux.Handle("POST /api/login", handler.NewLoginHandler(authService, log))
	mux.Handle("POST /api/change-password", handler.NewChangePasswordHandler(authService, log))
	mux.Handle("POST /create-user/", handler.NewCreateUserHandler(accountService, log))
	mux.Handle("GET /books/", handler.NewListBooksHandler(catalogService, log))
	mux.Handle("POST /borrow/", handler.NewSubmitBorrowHandler(borrowService, log))
	mux.Handle("GET /borrow-requests/", handler.NewListRequestsHandler(borrowService, log))
	mux.Handle("PATCH /update-request/{id}/{$}", handler.NewUpdateRequestHandler(borrowService, log))
	mux.Handle("GET /user-history/{userId}/{$}", handler.NewUserHistoryHandler(historyService, log))
	mux.Handle("GET /my-history/", handler.NewMyHistoryHandler(historyService, log))
	mux.Handle("/healthz", handler.NewHealthHandler())

	root := middleware.JWTMiddleware(tokens, log)(mux)
	server := httptest.NewServer(root)
	t.Cleanup(server.Close)

	return &TestServerHelper{
		Server:   server,
		Tokens:   tokens,
		Users:    users,
		Books:    books,
		Requests: requests,
		History:  history,
	}
}

// URL returns the server's base URL
func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// SeedUser inserts an account directly and returns it with a bearer token
func (h *TestServerHelper) SeedUser(t *testing.T, username, password string, isLibrarian bool) (*domain.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		IsLibrarian:  isLibrarian,
		CreatedAt:    time.Now(),
	}
	if err := h.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Username, user.IsLibrarian)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return user, token
}

// SeedBook inserts a catalog entry directly
func (h *TestServerHelper) SeedBook(t *testing.T, title, author, identifier string) *domain.Book {
	t.Helper()

	book := &domain.Book{
		ID:               uuid.NewString(),
		Title:            title,
		Author:           author,
		UniqueIdentifier: identifier,
		CreatedAt:        time.Now(),
	}
	if err := h.Books.Create(context.Background(), book); err != nil {
		t.Fatalf("failed to seed book: %v", err)
	}
	return book
}

// AssertStatusCode fails the test when the response status differs
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// In-memory repositories backing the test server.

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]*domain.User{}}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *domain.User) error {
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

func (r *memoryUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
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

func (r *memoryUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

type memoryBookRepo struct {
	mu    sync.Mutex
	books map[string]*domain.Book
}

func newMemoryBookRepo() *memoryBookRepo {
	return &memoryBookRepo{books: map[string]*domain.Book{}}
}

func (r *memoryBookRepo) Create(ctx context.Context, book *domain.Book) error {
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

func (r *memoryBookRepo) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("book: %w", domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (r *memoryBookRepo) List(ctx context.Context) ([]*domain.Book, error) {
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

type memoryBorrowRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.BorrowRequest
	history  *memoryHistoryRepo
}

func newMemoryBorrowRepo(history *memoryHistoryRepo) *memoryBorrowRepo {
	return &memoryBorrowRepo{
		requests: map[string]*domain.BorrowRequest{},
		history:  history,
	}
}

func (r *memoryBorrowRepo) Create(ctx context.Context, req *domain.BorrowRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *memoryBorrowRepo) GetByID(ctx context.Context, id string) (*domain.BorrowRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("borrow request: %w", domain.ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

func (r *memoryBorrowRepo) List(ctx context.Context) ([]*domain.BorrowRequest, error) {
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

func (r *memoryBorrowRepo) HasApprovedOverlap(ctx context.Context, bookID string, start, end time.Time, excludeID string) (bool, error) {
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

func (r *memoryBorrowRepo) Decide(ctx context.Context, id string, status domain.RequestStatus, history *domain.BorrowHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

type memoryHistoryRepo struct {
	mu      sync.Mutex
	records []*domain.BorrowHistory
}

func newMemoryHistoryRepo() *memoryHistoryRepo {
	return &memoryHistoryRepo{}
}

func (r *memoryHistoryRepo) add(h *domain.BorrowHistory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *h
	r.records = append(r.records, &cp)
}

func (r *memoryHistoryRepo) ListByUser(ctx context.Context, userID string) ([]*domain.BorrowHistory, error) {
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

func (r *memoryHistoryRepo) CountOpenOn(ctx context.Context, day time.Time) (int, error) {
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
