package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

func newTestVerifier(secret string) *Verifier {
	return NewVerifier(secret, zerolog.Nop())
}

func TestIssueAndVerify(t *testing.T) {
	v := newTestVerifier("s3cret")

	token, err := v.Issue("user-42", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	userID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != "user-42" {
		t.Errorf("Verify() = %q, want user-42", userID)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := newTestVerifier("s3cret")
	other := newTestVerifier("different")

	foreign, err := other.Issue("u", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	v.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := v.Issue("u", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	v.now = time.Now

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: "u"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		ID:               "u",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
		"missing exp":  noExp,
		"missing id":   noID,
		"wrong method": wrongAlg,
		"empty string": "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNoSecret(t *testing.T) {
	v := newTestVerifier("")

	if _, err := v.Issue("u", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Issue() error = %v, want ErrNoSecret", err)
	}
	if _, err := v.Verify("anything"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Verify() error = %v, want ErrNoSecret", err)
	}
}

func TestIssueEmptyUser(t *testing.T) {
	v := newTestVerifier("s3cret")
	if _, err := v.Issue("", time.Hour); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("Issue() error = %v, want ErrEmptyUserID", err)
	}
}

func TestUserID(t *testing.T) {
	v := newTestVerifier("s3cret")
	good, err := v.Issue("alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	bob, err := v.Issue("bob", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"no credential", "/ws/chat", "", Anonymous},
		{"bearer header", "/ws/chat", "Bearer " + good, "alice"},
		{"lowercase scheme", "/ws/chat", "bearer " + good, "alice"},
		{"query token", "/ws/chat/token?token=" + good, "", "alice"},
		{"header wins over query", "/ws/chat?token=" + bob, "Bearer " + good, "alice"},
		{"invalid header", "/ws/chat", "Bearer nope", Anonymous},
		{"invalid query", "/ws/chat/token?token=nope", "", Anonymous},
		{"basic auth ignored", "/ws/chat", "Basic abc", Anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := v.UserID(req); got != tt.want {
				t.Errorf("UserID() = %q, want %q", got, tt.want)
			}
		})
	}
}
