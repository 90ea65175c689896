package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/service"
)

// HistoryResponse is the serialized loan record
type HistoryResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	BookID     string    `json:"book_id"`
	BorrowDate string    `json:"borrow_date"`
	ReturnDate string    `json:"return_date"`
	CreatedAt  time.Time `json:"created_at"`
}

func toHistoryResponse(h *domain.BorrowHistory) HistoryResponse {
	return HistoryResponse{
		ID:         h.ID,
		UserID:     h.UserID,
		BookID:     h.BookID,
		BorrowDate: h.BorrowDate.Format(service.DateLayout),
		ReturnDate: h.ReturnDate.Format(service.DateLayout),
		CreatedAt:  h.CreatedAt,
	}
}

func toHistoryResponses(records []*domain.BorrowHistory) []HistoryResponse {
	resp := make([]HistoryResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toHistoryResponse(rec))
	}
	return resp
}

// UserHistoryHandler handles GET /user-history/{userId}/
type UserHistoryHandler struct {
	historyService *service.HistoryService
	logger         *slog.Logger
}

// NewUserHistoryHandler creates a new user history handler
func NewUserHistoryHandler(historyService *service.HistoryService, logger *slog.Logger) *UserHistoryHandler {
	return &UserHistoryHandler{historyService: historyService, logger: logger}
}

func (h *UserHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	userID := r.PathValue("userId")
	if userID == "" {
		// Path form: /user-history/{userId}/
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) >= 2 {
			userID = parts[1]
		}
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user id"})
		return
	}

	records, err := h.historyService.ListForUser(r.Context(), p, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toHistoryResponses(records))
}

// MyHistoryHandler handles GET /my-history/
type MyHistoryHandler struct {
	historyService *service.HistoryService
	logger         *slog.Logger
}

// NewMyHistoryHandler creates a new own-history handler
func NewMyHistoryHandler(historyService *service.HistoryService, logger *slog.Logger) *MyHistoryHandler {
	return &MyHistoryHandler{historyService: historyService, logger: logger}
}

func (h *MyHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	records, err := h.historyService.ListMine(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toHistoryResponses(records))
}
