package services

import (
	"errors"
	"testing"
)

func TestPasswordLogin(t *testing.T) {
	t.Setenv("LAN_BRIDGE_PASSWORD", "hunter2")
	tokens := NewTokenService()
	auth := NewAuthService(tokens, t.TempDir())

	token, err := auth.Login("hunter2")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if token != tokens.SessionToken() {
		t.Error("Login should issue the live session token")
	}

	if _, err := auth.Login("wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Login(wrong) error = %v, want ErrInvalidPassword", err)
	}
}

func TestSetPassword(t *testing.T) {
	t.Setenv("LAN_BRIDGE_PASSWORD", "initial")
	auth := NewAuthService(NewTokenService(), t.TempDir())

	if err := auth.SetPassword("rotated"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if auth.VerifyPassword("initial") {
		t.Error("old password should no longer verify")
	}
	if !auth.VerifyPassword("rotated") {
		t.Error("new password should verify")
	}
}

func TestPasswordSurvivesServiceRestart(t *testing.T) {
	t.Setenv("LAN_BRIDGE_PASSWORD", "persist-me")
	dir := t.TempDir()

	NewAuthService(NewTokenService(), dir)

	// A second service over the same data dir must reuse the stored hash,
	// not reseed it.
	t.Setenv("LAN_BRIDGE_PASSWORD", "different")
	again := NewAuthService(NewTokenService(), dir)
	if !again.VerifyPassword("persist-me") {
		t.Error("stored password hash should survive a restart")
	}
}
