package security

import (
	"errors"
	"testing"

	"github.com/yourorg/lendingdesk/internal/domain"
)

func TestRequireLibrarianAllowsLibrarian(t *testing.T) {
	gate := NewGate(nil)
	p := Principal{UserID: "u1", Username: "head-librarian", IsLibrarian: true}

	if err := gate.RequireLibrarian(p, "create users"); err != nil {
		t.Fatalf("expected librarian to pass, got %v", err)
	}
}

func TestRequireLibrarianRejectsPatron(t *testing.T) {
	gate := NewGate(nil)
	p := Principal{UserID: "u2", Username: "patron", IsLibrarian: false}

	err := gate.RequireLibrarian(p, "create users")
	if err == nil {
		t.Fatal("expected patron to be rejected")
	}
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
