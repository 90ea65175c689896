package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/service"
)

// BorrowRequestPayload is the submission payload
type BorrowRequestPayload struct {
	BookID    string `json:"book_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// BorrowRequestResponse is the serialized borrow request
type BorrowRequestResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toBorrowRequestResponse(req *domain.BorrowRequest) BorrowRequestResponse {
	return BorrowRequestResponse{
		ID:        req.ID,
		UserID:    req.UserID,
		BookID:    req.BookID,
		StartDate: req.StartDate.Format(service.DateLayout),
		EndDate:   req.EndDate.Format(service.DateLayout),
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
	}
}

// SubmitBorrowHandler handles POST /borrow/
type SubmitBorrowHandler struct {
	borrowService *service.BorrowService
	logger        *slog.Logger
}

// NewSubmitBorrowHandler creates a new borrow submission handler
func NewSubmitBorrowHandler(borrowService *service.BorrowService, logger *slog.Logger) *SubmitBorrowHandler {
	return &SubmitBorrowHandler{borrowService: borrowService, logger: logger}
}

func (h *SubmitBorrowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req BorrowRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	created, err := h.borrowService.Submit(r.Context(), p, service.SubmitInput{
		BookID:    req.BookID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBorrowRequestResponse(created))
}
