package services

import (
	"errors"
	"testing"
	"time"

	"chathub/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

func testUserService(now time.Time) *UserService {
	s := NewUserService(nil, "test-secret")
	s.now = func() time.Time { return now }
	return s
}

var testUser = models.User{
	ID:       "5b1f9a52-8a43-4f57-9d0b-2a0e6f7d9c10",
	Username: "alice",
	Avatar:   "https://avatars.example/alice",
}

func TestTokenRoundTrip(t *testing.T) {
	s := testUserService(time.Now())
	token, err := s.GenerateJWT(testUser)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	got, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	want := models.Identity{UserID: testUser.ID, Username: "alice", Avatar: testUser.Avatar}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Verify() mismatch (-want +got):\n%s", diff)
	}
}

func TestVerifyRejects(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testUserService(issued)

	access, _ := s.GenerateJWT(testUser)
	refresh, _ := s.GenerateRefreshToken(testUser)
	other := testUserService(issued)
	other.secret = []byte("other-secret")
	foreign, _ := other.GenerateJWT(testUser)

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": testUser.ID, "username": "alice", "typ": "access", "exp": issued.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "alice", "typ": "access", "exp": issued.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{"Garbage", "not-a-jwt", issued},
		{"Empty", "", issued},
		{"Expired", access, issued.Add(accessTokenTTL + time.Minute)},
		{"RefreshAsAccess", refresh, issued},
		{"WrongSecret", foreign, issued},
		{"AlgNone", noneToken, issued},
		{"MissingUserID", noSubject, issued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.now = func() time.Time { return tt.at }
			if _, err := s.Verify(tt.token); !errors.Is(err, models.ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestRefreshTokenType(t *testing.T) {
	s := testUserService(time.Now())
	access, _ := s.GenerateJWT(testUser)
	refresh, _ := s.GenerateRefreshToken(testUser)

	if _, err := s.verify(access, tokenTypeRefresh); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
	id, err := s.verify(refresh, tokenTypeRefresh)
	if err != nil {
		t.Fatalf("verify(refresh) error = %v", err)
	}
	if id.UserID != testUser.ID {
		t.Errorf("refresh identity = %+v", id)
	}
}

func TestDefaultAvatar(t *testing.T) {
	got := DefaultAvatar("jane doe")
	want := "https://api.dicebear.com/7.x/identicon/svg?seed=jane+doe"
	if got != want {
		t.Errorf("DefaultAvatar() = %q, want %q", got, want)
	}
}
