package identity

import (
	"context"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "Ana@Example.com", Name: "Ana", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}

	got, err := svc.Authenticate(ctx, "ana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	if _, err := svc.Authenticate(ctx, "ana@example.com", "wrong"); err == nil {
		t.Fatal("expected authentication failure for wrong password")
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "no-at-sign", Name: "X", Password: "longenough"}); err == nil {
		t.Fatal("expected invalid email rejection")
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.c", Name: "", Password: "longenough"}); err == nil {
		t.Fatal("expected missing name rejection")
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.c", Name: "X", Password: "short"}); err == nil {
		t.Fatal("expected short password rejection")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "a@b.c", Name: "A", Password: "longenough"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.c", Name: "B", Password: "longenough"}); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}
