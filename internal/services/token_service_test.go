package services

import (
	"strings"
	"testing"
	"time"
)

func TestValidateDirectToken(t *testing.T) {
	s := NewTokenService()

	if !s.ValidateToken(s.SessionToken()) {
		t.Error("live session token should validate")
	}
	if s.ValidateToken("") {
		t.Error("empty token should not validate")
	}
	if s.ValidateToken("deadbeef") {
		t.Error("arbitrary token should not validate")
	}
}

func TestEnvelopeRoundtrip(t *testing.T) {
	s := NewTokenService()

	envelope, err := s.IssueEnvelope()
	if err != nil {
		t.Fatalf("IssueEnvelope() failed: %v", err)
	}
	if envelope == s.SessionToken() {
		t.Fatal("envelope must not expose the raw token")
	}
	if !s.ValidateToken(envelope) {
		t.Error("fresh envelope should validate")
	}
}

func TestEnvelopeInvalidAfterRestart(t *testing.T) {
	s1 := NewTokenService()
	envelope, err := s1.IssueEnvelope()
	if err != nil {
		t.Fatalf("IssueEnvelope() failed: %v", err)
	}

	// A new service models a process restart: fresh secret, fresh token.
	s2 := NewTokenService()
	if s2.ValidateToken(envelope) {
		t.Error("envelope should not validate against a restarted service")
	}
	if s2.ValidateToken(s1.SessionToken()) {
		t.Error("old session token should not validate against a restarted service")
	}
}

func TestEnvelopeExpiry(t *testing.T) {
	s := NewTokenService()

	stale, err := s.issueEnvelopeAt(time.Now().Add(-EnvelopeTTL - time.Minute))
	if err != nil {
		t.Fatalf("issueEnvelopeAt() failed: %v", err)
	}
	if s.ValidateToken(stale) {
		t.Error("envelope older than the TTL should not validate")
	}

	fresh, err := s.issueEnvelopeAt(time.Now().Add(-EnvelopeTTL + time.Minute))
	if err != nil {
		t.Fatalf("issueEnvelopeAt() failed: %v", err)
	}
	if !s.ValidateToken(fresh) {
		t.Error("envelope within the TTL should validate")
	}
}

func TestTamperedEnvelope(t *testing.T) {
	s := NewTokenService()
	envelope, err := s.IssueEnvelope()
	if err != nil {
		t.Fatalf("IssueEnvelope() failed: %v", err)
	}

	tampered := []byte(envelope)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}
	if s.ValidateToken(string(tampered)) {
		t.Error("tampered envelope should not validate")
	}
	if s.ValidateToken("!!not-base64!!") {
		t.Error("undecodable envelope should not validate")
	}
}

func TestConsoleToken(t *testing.T) {
	s := NewTokenService()

	token, err := s.IssueConsoleToken()
	if err != nil {
		t.Fatalf("IssueConsoleToken() failed: %v", err)
	}
	if !s.ValidateServerToken(token) {
		t.Error("issued console token should validate")
	}
	if s.ValidateServerToken(s.SessionToken()) {
		t.Error("client token should not validate as a console token")
	}
	if s.ValidateServerToken("") {
		t.Error("empty console token should not validate")
	}

	other := NewTokenService()
	if other.ValidateServerToken(token) {
		t.Error("console token should not validate against another process's secret")
	}
}

func TestConsoleTokenNotSwappableWithClient(t *testing.T) {
	s := NewTokenService()
	token, err := s.IssueConsoleToken()
	if err != nil {
		t.Fatalf("IssueConsoleToken() failed: %v", err)
	}
	if s.ValidateToken(token) {
		t.Error("console token should not validate as a client token")
	}
	// JWTs carry dots; envelopes are raw base64url. Sanity-check the shapes
	// stay distinct.
	if !strings.Contains(token, ".") {
		t.Error("console token should be a signed JWT")
	}
}
