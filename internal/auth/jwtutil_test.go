package auth

import (
	"strings"
	"testing"
	"time"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignHS256(map[string]any{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims["sub"] != "user-1" {
		t.Fatalf("expected sub claim, got %v", claims["sub"])
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignHS256(map[string]any{"sub": "user-1"}, []byte("right"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, []byte("wrong")); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignHS256(map[string]any{"sub": "user-1"}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged, err := SignHS256(map[string]any{"sub": "user-2"}, secret)
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]
	if tampered == token {
		t.Fatal("tampered token identical to original")
	}
	if _, err := ParseAndVerifyHS256(tampered, secret); err == nil {
		t.Fatal("expected tampered payload rejection")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignHS256(map[string]any{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, secret); err == nil {
		t.Fatal("expected expired token rejection")
	}
}
