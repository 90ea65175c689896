package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/service"
)

// BookResponse is the serialized catalog entry
type BookResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	UniqueIdentifier string    `json:"unique_identifier"`
	CreatedAt        time.Time `json:"created_at"`
}

func toBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		UniqueIdentifier: b.UniqueIdentifier,
		CreatedAt:        b.CreatedAt,
	}
}

// ListBooksHandler handles GET /books/
type ListBooksHandler struct {
	catalogService *service.CatalogService
	logger         *slog.Logger
}

// NewListBooksHandler creates a new book listing handler
func NewListBooksHandler(catalogService *service.CatalogService, logger *slog.Logger) *ListBooksHandler {
	return &ListBooksHandler{catalogService: catalogService, logger: logger}
}

func (h *ListBooksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, ok := principalOrUnauthorized(w, r); !ok {
		return
	}

	books, err := h.catalogService.ListBooks(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := make([]BookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, toBookResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}
