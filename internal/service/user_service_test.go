package service

import (
	"errors"
	"testing"

	"github.com/carbonlog/internal/carbon"
)

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb)

	user, err := svc.Register(RegisterInput{Username: " alex ", Password: "secret123", FirstName: "Alex", Email: "alex@example.com"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Username != "alex" || user.Password == "secret123" {
		t.Fatalf("unexpected stored user %+v", user)
	}

	if _, err := svc.Register(RegisterInput{Username: "alex", Password: "another1", FirstName: "A"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	authed, err := svc.Authenticate("alex", "secret123")
	if err != nil || authed.ID != user.ID {
		t.Fatalf("expected authentication to succeed, got %v", err)
	}
	if _, err := svc.Authenticate("alex", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate("ghost", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestUserServiceRegisterValidation(t *testing.T) {
	svc := NewUserService(setupServiceTestDB(t))

	cases := []RegisterInput{
		{Username: "ab", Password: "secret123", FirstName: "A"},
		{Username: "alex", Password: "123", FirstName: "A"},
		{Username: "alex", Password: "secret123", FirstName: " "},
	}
	for _, input := range cases {
		if _, err := svc.Register(input); !errors.Is(err, ErrInvalidUserInput) {
			t.Fatalf("expected ErrInvalidUserInput for %+v, got %v", input, err)
		}
	}
}

func TestUserServiceAddPointsIsAtomicAndMonotonic(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb)
	user := createTestUser(t, gdb, "alex")

	for _, delta := range []int64{19, 150, 0, 411} {
		if err := svc.AddPoints(nil, user.ID, delta); err != nil {
			t.Fatalf("AddPoints(%d) returned error: %v", delta, err)
		}
	}

	if err := svc.AddPoints(nil, user.ID, -5); !errors.Is(err, carbon.ErrInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for negative award, got %v", err)
	}
	if err := svc.AddPoints(nil, 9999, 5); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	profile, err := svc.Profile(user.ID)
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if profile.User.Points != 580 {
		t.Fatalf("expected 580 points, got %d", profile.User.Points)
	}
	if profile.Rank.Rank != carbon.RankEcoHero || profile.Rank.PointsToNext != 420 {
		t.Fatalf("unexpected rank progress %+v", profile.Rank)
	}
}
