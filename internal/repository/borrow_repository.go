package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
)

// PostgresBorrowRequestRepository implements domain.BorrowRequestRepository
// using PostgreSQL
type PostgresBorrowRequestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBorrowRequestRepository creates a new borrow request repository
func NewPostgresBorrowRequestRepository(db *sql.DB, logger *slog.Logger) *PostgresBorrowRequestRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBorrowRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new borrow request
func (r *PostgresBorrowRequestRepository) Create(ctx context.Context, req *domain.BorrowRequest) error {
	query := `
		INSERT INTO borrow_requests (id, user_id, book_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		req.ID,
		req.UserID,
		req.BookID,
		req.StartDate,
		req.EndDate,
		req.Status,
	).Scan(&req.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create borrow request",
			slog.String("book_id", req.BookID),
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create borrow request: %w", err)
	}

	return nil
}

// GetByID retrieves a borrow request by ID
func (r *PostgresBorrowRequestRepository) GetByID(ctx context.Context, id string) (*domain.BorrowRequest, error) {
	req := &domain.BorrowRequest{}

	query := `
		SELECT id, user_id, book_id, start_date, end_date, status, created_at
		FROM borrow_requests
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.UserID,
		&req.BookID,
		&req.StartDate,
		&req.EndDate,
		&req.Status,
		&req.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("borrow request %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get borrow request: %w", err)
	}

	return req, nil
}

// List returns all borrow requests, newest first
func (r *PostgresBorrowRequestRepository) List(ctx context.Context) ([]*domain.BorrowRequest, error) {
	query := `
		SELECT id, user_id, book_id, start_date, end_date, status, created_at
		FROM borrow_requests
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list borrow requests",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list borrow requests: %w", err)
	}
	defer rows.Close()

	var reqs []*domain.BorrowRequest
	for rows.Next() {
		req := &domain.BorrowRequest{}
		err := rows.Scan(
			&req.ID,
			&req.UserID,
			&req.BookID,
			&req.StartDate,
			&req.EndDate,
			&req.Status,
			&req.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrow request: %w", err)
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// HasApprovedOverlap reports whether any Approved request for the book has a
// date range intersecting [start, end], bounds inclusive.
func (r *PostgresBorrowRequestRepository) HasApprovedOverlap(ctx context.Context, bookID string, start, end time.Time, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM borrow_requests
			WHERE book_id = $1
			  AND status = $2
			  AND start_date <= $3
			  AND end_date >= $4
			  AND ($5 = '' OR id <> $5)
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, bookID, domain.StatusApproved, end, start, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check approved overlap: %w", err)
	}

	return exists, nil
}

// Decide sets the request's status; when history is non-nil the loan record
// insert runs in the same transaction so a crash cannot leave an Approved
// request without its history row.
func (r *PostgresBorrowRequestRepository) Decide(ctx context.Context, id string, status domain.RequestStatus, history *domain.BorrowHistory) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE borrow_requests SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update borrow request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("borrow request %s: %w", id, domain.ErrNotFound)
	}

	if history != nil {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO borrow_history (id, user_id, book_id, borrow_date, return_date)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			history.ID,
			history.UserID,
			history.BookID,
			history.BorrowDate,
			history.ReturnDate,
		).Scan(&history.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create borrow history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision: %w", err)
	}

	return nil
}

// PostgresBorrowHistoryRepository implements domain.BorrowHistoryRepository
// using PostgreSQL
type PostgresBorrowHistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBorrowHistoryRepository creates a new borrow history repository
func NewPostgresBorrowHistoryRepository(db *sql.DB, logger *slog.Logger) *PostgresBorrowHistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBorrowHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// ListByUser returns all history rows for one user, newest loan first
func (r *PostgresBorrowHistoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.BorrowHistory, error) {
	query := `
		SELECT id, user_id, book_id, borrow_date, return_date, created_at
		FROM borrow_history
		WHERE user_id = $1
		ORDER BY borrow_date DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to list borrow history",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list borrow history: %w", err)
	}
	defer rows.Close()

	var history []*domain.BorrowHistory
	for rows.Next() {
		h := &domain.BorrowHistory{}
		err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.BookID,
			&h.BorrowDate,
			&h.ReturnDate,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrow history: %w", err)
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// CountOpenOn counts loans whose date range covers the given day
func (r *PostgresBorrowHistoryRepository) CountOpenOn(ctx context.Context, day time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM borrow_history
		WHERE borrow_date <= $1 AND return_date >= $1
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open loans: %w", err)
	}

	return count, nil
}
