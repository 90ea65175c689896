package domain

import (
	"context"
	"time"
)

// User represents a library account. The librarian flag is the single
// capability the API distinguishes.
type User struct {
	ID           string // UUID
	Username     string // Unique username
	Email        string
	PasswordHash string // Bcrypt hash, never serialized
	IsLibrarian  bool
	CreatedAt    time.Time
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) error
}
