package domain

import (
	"context"
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a borrow request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusDenied   RequestStatus = "Denied"
)

// ParseDecision validates a librarian's decision. Only Approved and Denied
// are legal decisions; Pending and anything outside the enum are rejected.
func ParseDecision(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusApproved:
		return StatusApproved, nil
	case StatusDenied:
		return StatusDenied, nil
	default:
		return "", Invalid("status", fmt.Sprintf("must be %q or %q", StatusApproved, StatusDenied))
	}
}

// BorrowRequest is a patron's date-ranged request for a book. Requests start
// Pending and transition exactly once, to Approved or Denied.
type BorrowRequest struct {
	ID        string // UUID
	UserID    string
	BookID    string
	StartDate time.Time // Calendar date, inclusive
	EndDate   time.Time // Calendar date, inclusive
	Status    RequestStatus
	CreatedAt time.Time
}

// BorrowHistory is the immutable record of an approved loan, derived from the
// request at approval time.
type BorrowHistory struct {
	ID         string // UUID
	UserID     string
	BookID     string
	BorrowDate time.Time
	ReturnDate time.Time
	CreatedAt  time.Time
}

// Overlaps reports whether two inclusive date ranges intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// BorrowRequestRepository defines data access for borrow requests.
type BorrowRequestRepository interface {
	Create(ctx context.Context, req *BorrowRequest) error
	GetByID(ctx context.Context, id string) (*BorrowRequest, error)
	List(ctx context.Context) ([]*BorrowRequest, error)

	// HasApprovedOverlap reports whether any Approved request for the book
	// has a date range intersecting [start, end]. excludeID, when non-empty,
	// removes one request from consideration (used when re-checking at
	// approval time).
	HasApprovedOverlap(ctx context.Context, bookID string, start, end time.Time, excludeID string) (bool, error)

	// Decide sets the request's status. When history is non-nil the insert
	// happens in the same transaction as the status update; either both
	// persist or neither does.
	Decide(ctx context.Context, id string, status RequestStatus, history *BorrowHistory) error
}

// BorrowHistoryRepository defines data access for loan history.
type BorrowHistoryRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*BorrowHistory, error)

	// CountOpenOn counts loans whose date range covers the given day.
	CountOpenOn(ctx context.Context, day time.Time) (int, error)
}
