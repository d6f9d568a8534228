package auth

import (
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	j := New("test-secret")
	tok, err := j.Sign("user-1", time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	sub, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("sub = %q, want %q", sub, "user-1")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := New("secret-a").Sign("user-1", time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := New("secret-b").Verify(tok); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	j := New("test-secret")
	tok, err := j.Sign("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := j.Verify(tok); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestSignRejectsEmptySubject(t *testing.T) {
	if _, err := New("s").Sign("", time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
