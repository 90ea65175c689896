package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/lendingdesk/internal/service"
)

// ListRequestsHandler handles GET /borrow-requests/
type ListRequestsHandler struct {
	borrowService *service.BorrowService
	logger        *slog.Logger
}

// NewListRequestsHandler creates a new request listing handler
func NewListRequestsHandler(borrowService *service.BorrowService, logger *slog.Logger) *ListRequestsHandler {
	return &ListRequestsHandler{borrowService: borrowService, logger: logger}
}

func (h *ListRequestsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	requests, err := h.borrowService.ListRequests(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := make([]BorrowRequestResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toBorrowRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DecisionPayload is the request decision payload
type DecisionPayload struct {
	Status string `json:"status"`
}

// UpdateRequestHandler handles PATCH /update-request/{id}/
type UpdateRequestHandler struct {
	borrowService *service.BorrowService
	logger        *slog.Logger
}

// NewUpdateRequestHandler creates a new request decision handler
func NewUpdateRequestHandler(borrowService *service.BorrowService, logger *slog.Logger) *UpdateRequestHandler {
	return &UpdateRequestHandler{borrowService: borrowService, logger: logger}
}

func (h *UpdateRequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}

	requestID := r.PathValue("id")
	if requestID == "" {
		// Path form: /update-request/{id}/
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) >= 2 {
			requestID = parts[1]
		}
	}
	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing request id"})
		return
	}

	var payload DecisionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	updated, err := h.borrowService.Decide(r.Context(), p, requestID, payload.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowRequestResponse(updated))
}
