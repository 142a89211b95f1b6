package auth

import (
	"testing"
	"time"
)

const testSecret = "test-secret"

// TestToken_RoundTrip tests issuing and parsing a session token.
func TestToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken() failed: %v", err)
	}
	if claims.OwnerID != "user-1" {
		t.Errorf("owner = %q, want %q", claims.OwnerID, "user-1")
	}
}

// TestParseToken_WrongSecret tests signature verification.
func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Error("ParseToken() accepted a token signed with another secret")
	}
}

// TestParseToken_Expired tests that an expired token is rejected.
func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if _, err := ParseToken(testSecret, token); err == nil {
		t.Error("ParseToken() accepted an expired token")
	}
}

// TestFileSession_Lifecycle tests login, reads, and logout against a real
// token file.
func TestFileSession_Lifecycle(t *testing.T) {
	s := NewFileSession(t.TempDir(), testSecret)

	if s.IsAuthenticated() {
		t.Fatal("fresh session authenticated")
	}
	if got := s.OwnerID(); got != "" {
		t.Fatalf("fresh session owner = %q, want empty", got)
	}

	if err := s.Login("user-1", time.Hour); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Error("session not authenticated after login")
	}
	if got := s.OwnerID(); got != "user-1" {
		t.Errorf("owner = %q, want %q", got, "user-1")
	}

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("session authenticated after logout")
	}

	// Logging out twice is fine.
	if err := s.Logout(); err != nil {
		t.Errorf("second Logout() failed: %v", err)
	}
}

// TestFileSession_ExpiredTokenUnauthenticates tests that expiry flips the
// session without any restart or cleanup.
func TestFileSession_ExpiredTokenUnauthenticates(t *testing.T) {
	s := NewFileSession(t.TempDir(), testSecret)

	if err := s.Login("user-1", -time.Minute); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("expired session still authenticated")
	}
}

// TestFileSession_RejectsEmptyOwner tests login validation.
func TestFileSession_RejectsEmptyOwner(t *testing.T) {
	s := NewFileSession(t.TempDir(), testSecret)
	if err := s.Login("", time.Hour); err == nil {
		t.Error("Login() accepted empty owner id")
	}
}

// TestStatic tests the fixed-owner provider.
func TestStatic(t *testing.T) {
	if (Static{}).IsAuthenticated() {
		t.Error("empty Static authenticated")
	}
	s := Static{Owner: "user-1"}
	if !s.IsAuthenticated() || s.OwnerID() != "user-1" {
		t.Errorf("Static = %v/%q", s.IsAuthenticated(), s.OwnerID())
	}
}
