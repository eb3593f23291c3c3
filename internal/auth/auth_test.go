package auth

import (
	"errors"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "secret1" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword("secret1", hash) {
		t.Fatal("correct password should verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password should not verify")
	}
	if CheckPassword("secret1", "not-a-hash") {
		t.Fatal("garbage hash should not verify")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password should differ (salt)")
	}
}

func TestIssueAndVerifyToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.Issue("user-123", "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-123" || claims.Email != "a@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	exp := claims.ExpiresAt.Time
	if d := time.Until(exp); d < TokenDuration-time.Minute || d > TokenDuration+time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	other := NewTokenIssuer("other-secret")

	token, err := issuer.Issue("user-123", "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := []struct {
		name  string
		token string
		via   *TokenIssuer
	}{
		{"malformed", "not.a.token", issuer},
		{"empty", "", issuer},
		{"wrong secret", token, other},
		{"tampered", token + "x", issuer},
	}
	for _, tc := range cases {
		if _, err := tc.via.Verify(tc.token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	issuer.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, err := issuer.Issue("user-123", "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Verify with real time: the token expired a day ago.
	issuer.now = time.Now
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
