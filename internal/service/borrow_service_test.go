package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/events"
	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/audit"
)

type borrowFixture struct {
	svc         *BorrowService
	requests    *fakeBorrowRepo
	history     *fakeHistoryRepo
	books       *fakeBookRepo
	broadcaster *events.Broadcaster
	book        *domain.Book
}

func newBorrowFixture(t *testing.T, strict bool) *borrowFixture {
	t.Helper()

	history := newFakeHistoryRepo()
	requests := newFakeBorrowRepo(history)
	books := newFakeBookRepo()

	book := &domain.Book{
		ID:               uuid.NewString(),
		Title:            "The Go Programming Language",
		Author:           "Donovan and Kernighan",
		UniqueIdentifier: "978-0134190440",
		CreatedAt:        time.Now(),
	}
	if err := books.Create(context.Background(), book); err != nil {
		t.Fatalf("failed to seed book: %v", err)
	}

	broadcaster := events.NewBroadcaster()
	gate := security.NewGate(nil)
	auditLogger := audit.NewLogger(testLogger())

	return &borrowFixture{
		svc:         NewBorrowService(requests, books, gate, broadcaster, auditLogger, testLogger(), strict),
		requests:    requests,
		history:     history,
		books:       books,
		broadcaster: broadcaster,
		book:        book,
	}
}

var patron = security.Principal{UserID: "patron-1", Username: "alice"}
var librarian = security.Principal{UserID: "lib-1", Username: "marian", IsLibrarian: true}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	f := newBorrowFixture(t, false)

	req, err := f.svc.Submit(context.Background(), patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if req.Status != domain.StatusPending {
		t.Errorf("expected Pending, got %s", req.Status)
	}
	if req.UserID != patron.UserID {
		t.Errorf("request attributed to %s, want %s", req.UserID, patron.UserID)
	}

	stored, err := f.requests.GetByID(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("request was not persisted: %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Errorf("stored status %s, want Pending", stored.Status)
	}
}

func TestSubmitRejectsInvalidWindow(t *testing.T) {
	f := newBorrowFixture(t, false)

	tests := []struct {
		name  string
		input SubmitInput
	}{
		{"missing dates", SubmitInput{BookID: f.book.ID}},
		{"bad date format", SubmitInput{BookID: f.book.ID, StartDate: "01/03/2026", EndDate: "2026-03-10"}},
		{"end before start", SubmitInput{BookID: f.book.ID, StartDate: "2026-03-10", EndDate: "2026-03-01"}},
		{"missing book", SubmitInput{StartDate: "2026-03-01", EndDate: "2026-03-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), patron, tt.input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if reqs, _ := f.requests.List(context.Background()); len(reqs) != 0 {
		t.Errorf("invalid submissions must not persist, found %d requests", len(reqs))
	}
}

func TestSubmitUnknownBookIsNotFound(t *testing.T) {
	f := newBorrowFixture(t, false)

	_, err := f.svc.Submit(context.Background(), patron, SubmitInput{
		BookID:    uuid.NewString(),
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestSubmitConflictsWithApprovedLoan(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := f.svc.Decide(ctx, librarian, first.ID, "Approved"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	overlapping := []struct {
		name  string
		start string
		end   string
	}{
		{"identical window", "2026-03-01", "2026-03-10"},
		{"contained window", "2026-03-03", "2026-03-05"},
		{"touching end date", "2026-03-10", "2026-03-20"},
		{"touching start date", "2026-02-20", "2026-03-01"},
	}
	for _, tt := range overlapping {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, patron, SubmitInput{
				BookID:    f.book.ID,
				StartDate: tt.start,
				EndDate:   tt.end,
			})
			if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("expected conflict, got %v", err)
			}
		})
	}

	// A disjoint window is accepted
	if _, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-11",
		EndDate:   "2026-03-20",
	}); err != nil {
		t.Errorf("disjoint window should be accepted, got %v", err)
	}

	// Conflicting submissions leave no trace
	reqs, _ := f.requests.List(ctx)
	if len(reqs) != 2 {
		t.Errorf("expected 2 persisted requests (approved + disjoint), found %d", len(reqs))
	}
}

func TestPendingRequestsDoNotBlockSubmission(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Same window again: the first request is still Pending, so no conflict
	if _, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	}); err != nil {
		t.Errorf("pending requests must not block submissions, got %v", err)
	}
}

func TestApproveWritesHistoryFromRequest(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	updated, err := f.svc.Decide(ctx, librarian, req.ID, "Approved")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Errorf("expected Approved, got %s", updated.Status)
	}

	records, _ := f.history.ListByUser(ctx, patron.UserID)
	if len(records) != 1 {
		t.Fatalf("expected exactly one history record, found %d", len(records))
	}

	rec := records[0]
	if !rec.BorrowDate.Equal(req.StartDate) || !rec.ReturnDate.Equal(req.EndDate) {
		t.Errorf("history dates %v..%v do not match request %v..%v",
			rec.BorrowDate, rec.ReturnDate, req.StartDate, req.EndDate)
	}
	if rec.UserID != patron.UserID || rec.BookID != f.book.ID {
		t.Errorf("history record attributed to %s/%s, want %s/%s",
			rec.UserID, rec.BookID, patron.UserID, f.book.ID)
	}
}

func TestDenyWritesNoHistory(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	updated, err := f.svc.Decide(ctx, librarian, req.ID, "Denied")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if updated.Status != domain.StatusDenied {
		t.Errorf("expected Denied, got %s", updated.Status)
	}

	records, _ := f.history.ListByUser(ctx, patron.UserID)
	if len(records) != 0 {
		t.Errorf("denial must not write history, found %d records", len(records))
	}
}

func TestDecideRejectsBadStatus(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for _, status := range []string{"Cancelled", "Pending", "approved", ""} {
		_, err := f.svc.Decide(ctx, librarian, req.ID, status)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("status %q: expected validation error, got %v", status, err)
		}
	}

	stored, _ := f.requests.GetByID(ctx, req.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("rejected decisions must not change status, got %s", stored.Status)
	}
}

func TestDecideForbiddenForPatrons(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err = f.svc.Decide(ctx, patron, req.ID, "Approved")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	stored, _ := f.requests.GetByID(ctx, req.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("forbidden decisions must not mutate, got %s", stored.Status)
	}
	if records, _ := f.history.ListByUser(ctx, patron.UserID); len(records) != 0 {
		t.Errorf("forbidden decisions must not write history")
	}
}

func TestDecideUnknownRequestIsNotFound(t *testing.T) {
	f := newBorrowFixture(t, false)

	_, err := f.svc.Decide(context.Background(), librarian, uuid.NewString(), "Approved")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestDecideFailureLeavesNoPartialState(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	f.requests.failDecide = true
	if _, err := f.svc.Decide(ctx, librarian, req.ID, "Approved"); err == nil {
		t.Fatal("expected decide to fail")
	}
	f.requests.failDecide = false

	stored, _ := f.requests.GetByID(ctx, req.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("failed decide must leave status Pending, got %s", stored.Status)
	}
	if records, _ := f.history.ListByUser(ctx, patron.UserID); len(records) != 0 {
		t.Errorf("failed decide must not write history")
	}
}

func TestStrictApprovalBlocksDoubleBooking(t *testing.T) {
	f := newBorrowFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	second, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-05",
		EndDate:   "2026-03-15",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := f.svc.Decide(ctx, librarian, first.ID, "Approved"); err != nil {
		t.Fatalf("first approval failed: %v", err)
	}

	_, err = f.svc.Decide(ctx, librarian, second.ID, "Approved")
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("strict mode should reject the second approval, got %v", err)
	}

	// Denying the conflicting request still works
	if _, err := f.svc.Decide(ctx, librarian, second.ID, "Denied"); err != nil {
		t.Errorf("denial should not hit the overlap check, got %v", err)
	}
}

func TestLaxApprovalAllowsDoubleBooking(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	first, _ := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	second, _ := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-05",
		EndDate:   "2026-03-15",
	})

	if _, err := f.svc.Decide(ctx, librarian, first.ID, "Approved"); err != nil {
		t.Fatalf("first approval failed: %v", err)
	}
	if _, err := f.svc.Decide(ctx, librarian, second.ID, "Approved"); err != nil {
		t.Errorf("lax mode approves overlapping pending requests, got %v", err)
	}
}

func TestListRequestsLibrarianOnly(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := f.svc.ListRequests(ctx, patron); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("patrons must not list requests, got %v", err)
	}

	reqs, err := f.svc.ListRequests(ctx, librarian)
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(reqs) != 1 {
		t.Errorf("expected 1 request, got %d", len(reqs))
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	f := newBorrowFixture(t, false)
	ctx := context.Background()

	sub, cancel := f.broadcaster.Subscribe()
	defer cancel()

	req, err := f.svc.Submit(ctx, patron, SubmitInput{
		BookID:    f.book.ID,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := f.svc.Decide(ctx, librarian, req.ID, "Approved"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	first := <-sub
	if first.Type != events.TypeSubmitted || first.RequestID != req.ID {
		t.Errorf("unexpected first event %+v", first)
	}
	second := <-sub
	if second.Type != events.TypeApproved || second.RequestID != req.ID {
		t.Errorf("unexpected second event %+v", second)
	}
}
