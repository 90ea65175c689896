package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/middleware"
)

// errorResponse is the uniform error body
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON serializes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a service error onto a status code. Conflicts and
// validation failures both answer 400; the body distinguishes them.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.String("error", err.Error()))
		resp.Error = "internal server error"
	}

	writeJSON(w, status, resp)
}

// principalOrUnauthorized fetches the authenticated caller, answering 401
// when the middleware did not install one.
func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (security.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return security.Principal{}, false
	}
	return p, true
}
