package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/audit"
)

// AccountService provisions library accounts. Only librarians may create
// them; there is no self-registration.
type AccountService struct {
	userRepo domain.UserRepository
	gate     *security.Gate
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(userRepo domain.UserRepository, gate *security.Gate, auditLogger *audit.Logger, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AccountService{
		userRepo: userRepo,
		gate:     gate,
		audit:    auditLogger,
		logger:   logger,
	}
}

// CreateUserInput is the account provisioning payload
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	IsLibrarian bool
}

// CreateUser provisions a new account. The capability check runs before any
// validation so non-librarians learn nothing about the payload rules.
func (s *AccountService) CreateUser(ctx context.Context, p security.Principal, in CreateUserInput) (*domain.User, error) {
	if err := s.gate.RequireLibrarian(p, "create users"); err != nil {
		s.audit.LogDenied(ctx, p.UserID, "create user")
		return nil, err
	}

	if err := validateNewUser(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		IsLibrarian:  in.IsLibrarian,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.LogAction(ctx, p.UserID, "create_user", "user", user.ID, "created", user.Username)
	s.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("is_librarian", user.IsLibrarian),
		slog.String("created_by", p.UserID),
	)

	return user, nil
}

// GetUser fetches one account by ID
func (s *AccountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func validateNewUser(in CreateUserInput) error {
	fields := map[string]string{}

	username := strings.TrimSpace(in.Username)
	switch {
	case username == "":
		fields["username"] = "is required"
	case len(username) > 150:
		fields["username"] = "must be at most 150 characters"
	}

	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			fields["email"] = "must be a valid email address"
		}
	}

	if len(in.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
