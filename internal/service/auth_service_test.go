package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/security/auth"
)

func seedUser(t *testing.T, users *fakeUserRepo, username, password string, isLibrarian bool) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		IsLibrarian:  isLibrarian,
		CreatedAt:    time.Now(),
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *auth.TokenManager) {
	t.Helper()
	users := newFakeUserRepo()
	tm := auth.NewTokenManager("test-secret", "lendingdesk", time.Hour)
	return NewAuthService(users, tm, testLogger()), users, tm
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, users, tm := newAuthFixture(t)
	seeded := seedUser(t, users, "marian", "password12345", true)

	result, err := svc.Login(context.Background(), "marian", "password12345")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.UserID != seeded.ID {
		t.Errorf("result user %s, want %s", result.UserID, seeded.ID)
	}
	if !result.IsLibrarian {
		t.Error("expected librarian flag in result")
	}

	claims, err := tm.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID != seeded.ID || !claims.IsLibrarian {
		t.Errorf("claims %+v do not match user", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	seedUser(t, users, "marian", "password12345", false)

	if _, err := svc.Login(context.Background(), "marian", "wrong-password"); err == nil {
		t.Error("expected wrong password to fail")
	}
	if _, err := svc.Login(context.Background(), "nobody", "password12345"); err == nil {
		t.Error("expected unknown username to fail")
	}
	if _, err := svc.Login(context.Background(), "", ""); err == nil {
		t.Error("expected empty credentials to fail")
	}
}

func TestChangePassword(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	seeded := seedUser(t, users, "alice", "oldpassword1", false)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, seeded.ID, "oldpassword1", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "oldpassword1"); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := svc.Login(ctx, "alice", "newpassword1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	seeded := seedUser(t, users, "alice", "oldpassword1", false)

	if err := svc.ChangePassword(context.Background(), seeded.ID, "not-the-password", "newpassword1"); err == nil {
		t.Error("expected wrong current password to fail")
	}
	if err := svc.ChangePassword(context.Background(), seeded.ID, "oldpassword1", "short"); err == nil {
		t.Error("expected short new password to fail")
	}
}
