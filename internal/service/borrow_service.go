package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/events"
	"github.com/yourorg/lendingdesk/internal/observability/metrics"
	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/audit"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// BorrowService owns the borrow request lifecycle: submission with conflict
// detection, and librarian decisions with atomic history recording.
type BorrowService struct {
	requestRepo domain.BorrowRequestRepository
	bookRepo    domain.BookRepository
	gate        *security.Gate
	broadcaster *events.Broadcaster
	audit       *audit.Logger
	logger      *slog.Logger

	// strictApproval re-runs the overlap check at approval time, so two
	// pending requests for the same window cannot both be approved.
	strictApproval bool
}

// NewBorrowService creates a new borrow service
func NewBorrowService(
	requestRepo domain.BorrowRequestRepository,
	bookRepo domain.BookRepository,
	gate *security.Gate,
	broadcaster *events.Broadcaster,
	auditLogger *audit.Logger,
	logger *slog.Logger,
	strictApproval bool,
) *BorrowService {
	if logger == nil {
		logger = slog.Default()
	}

	return &BorrowService{
		requestRepo:    requestRepo,
		bookRepo:       bookRepo,
		gate:           gate,
		broadcaster:    broadcaster,
		audit:          auditLogger,
		logger:         logger,
		strictApproval: strictApproval,
	}
}

// SubmitInput is the patron-facing submission payload
type SubmitInput struct {
	BookID    string
	StartDate string
	EndDate   string
}

// Submit validates a borrow request against the catalog and the approved
// schedule, then persists it as Pending. A window touching any approved
// loan for the same book, endpoints included, is a conflict.
func (s *BorrowService) Submit(ctx context.Context, p security.Principal, in SubmitInput) (*domain.BorrowRequest, error) {
	start, end, err := parseWindow(in.StartDate, in.EndDate)
	if err != nil {
		metrics.ObserveSubmission("invalid")
		return nil, err
	}

	if in.BookID == "" {
		metrics.ObserveSubmission("invalid")
		return nil, domain.Invalid("book_id", "is required")
	}

	if _, err := s.bookRepo.GetByID(ctx, in.BookID); err != nil {
		metrics.ObserveSubmission("not_found")
		return nil, fmt.Errorf("book %s: %w", in.BookID, err)
	}

	overlap, err := s.requestRepo.HasApprovedOverlap(ctx, in.BookID, start, end, "")
	if err != nil {
		metrics.ObserveSubmission("error")
		return nil, fmt.Errorf("failed to check schedule: %w", err)
	}
	if overlap {
		metrics.ObserveSubmission("conflict")
		s.audit.LogAction(ctx, p.UserID, "borrow_request", "book", in.BookID, "conflict", in.StartDate+".."+in.EndDate)
		return nil, fmt.Errorf("%w: book is already borrowed for these dates", domain.ErrConflict)
	}

	req := &domain.BorrowRequest{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		BookID:    in.BookID,
		StartDate: start,
		EndDate:   end,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		metrics.ObserveSubmission("error")
		return nil, fmt.Errorf("failed to create borrow request: %w", err)
	}

	metrics.ObserveSubmission("created")
	s.audit.LogAction(ctx, p.UserID, "borrow_request", "borrow_request", req.ID, "created", "")
	s.logger.Info("borrow request submitted",
		slog.String("request_id", req.ID),
		slog.String("user_id", p.UserID),
		slog.String("book_id", req.BookID),
	)

	s.broadcaster.Publish(events.Event{
		Type:      events.TypeSubmitted,
		RequestID: req.ID,
		UserID:    req.UserID,
		BookID:    req.BookID,
		StartDate: req.StartDate.Format(DateLayout),
		EndDate:   req.EndDate.Format(DateLayout),
		At:        time.Now().UTC(),
	})

	return req, nil
}

// ListRequests returns every borrow request, newest first. Librarian only.
func (s *BorrowService) ListRequests(ctx context.Context, p security.Principal) ([]*domain.BorrowRequest, error) {
	if err := s.gate.RequireLibrarian(p, "view borrow requests"); err != nil {
		return nil, err
	}
	return s.requestRepo.List(ctx)
}

// Decide applies a librarian's decision to a pending request. Approval writes
// the loan into history in the same transaction as the status change.
func (s *BorrowService) Decide(ctx context.Context, p security.Principal, requestID, decision string) (*domain.BorrowRequest, error) {
	if err := s.gate.RequireLibrarian(p, "decide borrow requests"); err != nil {
		metrics.ObserveDecision("forbidden")
		s.audit.LogDenied(ctx, p.UserID, "decide borrow request "+requestID)
		return nil, err
	}

	status, err := domain.ParseDecision(decision)
	if err != nil {
		metrics.ObserveDecision("invalid")
		return nil, err
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		metrics.ObserveDecision("not_found")
		return nil, fmt.Errorf("borrow request %s: %w", requestID, err)
	}

	var history *domain.BorrowHistory
	if status == domain.StatusApproved {
		if s.strictApproval {
			overlap, err := s.requestRepo.HasApprovedOverlap(ctx, req.BookID, req.StartDate, req.EndDate, req.ID)
			if err != nil {
				metrics.ObserveDecision("error")
				return nil, fmt.Errorf("failed to check schedule: %w", err)
			}
			if overlap {
				metrics.ObserveDecision("conflict")
				s.audit.LogDecision(ctx, p.UserID, requestID, "conflict")
				return nil, fmt.Errorf("%w: book is already borrowed for these dates", domain.ErrConflict)
			}
		}

		history = &domain.BorrowHistory{
			ID:         uuid.NewString(),
			UserID:     req.UserID,
			BookID:     req.BookID,
			BorrowDate: req.StartDate,
			ReturnDate: req.EndDate,
			CreatedAt:  time.Now().UTC(),
		}
	}

	if err := s.requestRepo.Decide(ctx, req.ID, status, history); err != nil {
		metrics.ObserveDecision("error")
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}
	req.Status = status

	outcome := "denied"
	eventType := events.TypeDenied
	if status == domain.StatusApproved {
		outcome = "approved"
		eventType = events.TypeApproved
	}

	metrics.ObserveDecision(outcome)
	s.audit.LogDecision(ctx, p.UserID, req.ID, outcome)
	s.logger.Info("borrow request decided",
		slog.String("request_id", req.ID),
		slog.String("decided_by", p.UserID),
		slog.String("status", string(status)),
	)

	s.broadcaster.Publish(events.Event{
		Type:      eventType,
		RequestID: req.ID,
		UserID:    req.UserID,
		BookID:    req.BookID,
		StartDate: req.StartDate.Format(DateLayout),
		EndDate:   req.EndDate.Format(DateLayout),
		At:        time.Now().UTC(),
	})

	return req, nil
}

// parseWindow parses and validates an inclusive calendar window.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	fields := map[string]string{}

	if startStr == "" {
		fields["start_date"] = "is required"
	}
	if endStr == "" {
		fields["end_date"] = "is required"
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, &domain.ValidationError{Fields: fields}
	}

	start, err := time.Parse(DateLayout, startStr)
	if err != nil {
		fields["start_date"] = "must be a date in YYYY-MM-DD form"
	}
	end, err := time.Parse(DateLayout, endStr)
	if err != nil {
		fields["end_date"] = "must be a date in YYYY-MM-DD form"
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, &domain.ValidationError{Fields: fields}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, domain.Invalid("end_date", "must not be before start_date")
	}
	return start, end, nil
}
