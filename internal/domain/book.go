package domain

import (
	"context"
	"time"
)

// Book is a catalog entry. Books are seeded through admin tooling and are
// never mutated by the borrow lifecycle.
type Book struct {
	ID               string // UUID
	Title            string
	Author           string
	UniqueIdentifier string // Globally unique catalog identifier (ISBN or shelf code)
	CreatedAt        time.Time
}

// BookRepository defines data access for books
type BookRepository interface {
	Create(ctx context.Context, book *Book) error
	GetByID(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
}
