package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EnvelopeTTL is how long an issued envelope stays valid.
const EnvelopeTTL = 24 * time.Hour

var errInvalidEnvelope = errors.New("invalid envelope")

// TokenService is the single source of truth for connection credentials.
// All secrets live only in memory; restarting the process invalidates every
// outstanding token and envelope.
type TokenService struct {
	sessionToken  string
	envelopeKey   []byte // AES-256-GCM key for shareable envelopes
	consoleSecret []byte // HS256 key for console JWTs
}

type consoleClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type envelopePayload struct {
	Token    string `json:"token"`
	IssuedAt int64  `json:"ts"` // unix ms
}

// NewTokenService generates fresh secrets and a fresh session token.
func NewTokenService() *TokenService {
	s := &TokenService{
		sessionToken:  hex.EncodeToString(mustRandom(32)),
		envelopeKey:   mustRandom(32),
		consoleSecret: mustRandom(32),
	}
	// Optional pinned console secret, so an external console can survive
	// server restarts.
	if override := os.Getenv("LAN_BRIDGE_CONSOLE_SECRET"); override != "" {
		s.consoleSecret = []byte(override)
	}
	return s
}

// SessionToken returns the live client token.
func (s *TokenService) SessionToken() string {
	return s.sessionToken
}

// IssueEnvelope seals {token, now} with AES-GCM for QR/URL distribution so
// the raw token is never embedded in a shareable link.
func (s *TokenService) IssueEnvelope() (string, error) {
	return s.issueEnvelopeAt(time.Now())
}

func (s *TokenService) issueEnvelopeAt(now time.Time) (string, error) {
	payload, err := json.Marshal(envelopePayload{
		Token:    s.sessionToken,
		IssuedAt: now.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(s.envelopeKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := mustRandom(gcm.NonceSize())
	sealed := gcm.Seal(nonce, nonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// ValidateToken reports whether candidate is the live session token, either
// directly (password login) or wrapped in a non-expired envelope. Every
// decode, decryption, or expiry problem is a plain false.
func (s *TokenService) ValidateToken(candidate string) bool {
	if candidate == "" {
		return false
	}
	if hmac.Equal([]byte(candidate), []byte(s.sessionToken)) {
		return true
	}
	payload, err := s.openEnvelope(candidate)
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(payload.Token), []byte(s.sessionToken)) {
		return false
	}
	age := time.Since(time.UnixMilli(payload.IssuedAt))
	return age >= 0 && age <= EnvelopeTTL
}

func (s *TokenService) openEnvelope(candidate string) (*envelopePayload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(candidate)
	if err != nil {
		return nil, errInvalidEnvelope
	}
	block, err := aes.NewCipher(s.envelopeKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errInvalidEnvelope
	}
	plain, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, errInvalidEnvelope
	}
	var payload envelopePayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, errInvalidEnvelope
	}
	return &payload, nil
}

// IssueConsoleToken creates a signed token for the privileged console role.
// Console tokens are only accepted on loopback connections; that check is the
// router's, not this service's.
func (s *TokenService) IssueConsoleToken() (string, error) {
	claims := consoleClaims{
		Role: "console",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.consoleSecret)
}

// ValidateServerToken reports whether candidate is a valid console token.
func (s *TokenService) ValidateServerToken(candidate string) bool {
	if candidate == "" {
		return false
	}
	token, err := jwt.ParseWithClaims(candidate, &consoleClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.consoleSecret, nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(*consoleClaims)
	return ok && claims.Role == "console"
}

func mustRandom(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
