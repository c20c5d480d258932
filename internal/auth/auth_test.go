package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewJWTService("secret")
	tok, err := s.GenerateToken(7, "anna", "admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := s.ValidateToken(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "anna" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejected(t *testing.T) {
	s := NewJWTService("secret")
	tok, _ := s.GenerateToken(1, "a", "user")

	if _, err := NewJWTService("other").ValidateToken(tok); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}

	late := NewJWTService("secret")
	late.now = func() time.Time { return time.Now().Add(TokenTTL + time.Hour) }
	if _, err := late.ValidateToken(tok); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword("hunter2", hash) || CheckPassword("hunter3", hash) {
		t.Fatalf("password check wrong")
	}
}
