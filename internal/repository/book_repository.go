package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/lendingdesk/internal/domain"
)

// PostgresBookRepository implements domain.BookRepository using PostgreSQL
type PostgresBookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBookRepository creates a new book repository
func NewPostgresBookRepository(db *sql.DB, logger *slog.Logger) *PostgresBookRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBookRepository{
		db:     db,
		logger: logger,
	}
}

// Create adds a book to the catalog. A duplicate unique_identifier surfaces
// as a field-level validation error.
func (r *PostgresBookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books (id, title, author, unique_identifier)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		book.ID,
		book.Title,
		book.Author,
		book.UniqueIdentifier,
	).Scan(&book.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.Invalid("unique_identifier", "already in catalog")
		}
		r.logger.Error("failed to create book",
			slog.String("unique_identifier", book.UniqueIdentifier),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create book: %w", err)
	}

	return nil
}

// GetByID retrieves a book by ID
func (r *PostgresBookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	book := &domain.Book{}

	query := `
		SELECT id, title, author, unique_identifier, created_at
		FROM books
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.UniqueIdentifier,
		&book.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return book, nil
}

// List returns the full catalog
func (r *PostgresBookRepository) List(ctx context.Context) ([]*domain.Book, error) {
	query := `
		SELECT id, title, author, unique_identifier, created_at
		FROM books
		ORDER BY title, author
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list books",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book := &domain.Book{}
		err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Author,
			&book.UniqueIdentifier,
			&book.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}

	return books, rows.Err()
}
