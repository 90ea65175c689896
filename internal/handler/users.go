package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/service"
)

// CreateUserRequest is the account provisioning payload
type CreateUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password"`
	IsLibrarian bool   `json:"is_librarian,omitempty"`
}

// UserResponse is the serialized account, without the password hash
type UserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	IsLibrarian bool      `json:"is_librarian"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsLibrarian: u.IsLibrarian,
		CreatedAt:   u.CreatedAt,
	}
}

// CreateUserHandler handles POST /create-user/
type CreateUserHandler struct {
	accountService *service.AccountService
	logger         *slog.Logger
}

// NewCreateUserHandler creates a new create-user handler
func NewCreateUserHandler(accountService *service.AccountService, logger *slog.Logger) *CreateUserHandler {
	return &CreateUserHandler{accountService: accountService, logger: logger}
}

func (h *CreateUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.accountService.CreateUser(r.Context(), p, service.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		IsLibrarian: req.IsLibrarian,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}
