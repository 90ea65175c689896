package security

import (
	"fmt"
	"log/slog"

	"github.com/yourorg/lendingdesk/internal/domain"
)

// Principal is the authenticated caller of an operation, as established by
// the JWT middleware.
type Principal struct {
	UserID      string
	Username    string
	IsLibrarian bool
}

// Gate answers capability checks. Checks never touch the store and have no
// side effects beyond a log line.
type Gate struct {
	logger *slog.Logger
}

// NewGate creates a new authorization gate
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// RequireLibrarian returns a Forbidden error naming the attempted action
// when the principal lacks the librarian capability.
func (g *Gate) RequireLibrarian(p Principal, action string) error {
	if p.IsLibrarian {
		return nil
	}

	g.logger.Info("capability check failed",
		slog.String("user_id", p.UserID),
		slog.String("action", action),
	)
	return fmt.Errorf("%w: only librarians can %s", domain.ErrForbidden, action)
}
