package services

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/vonxq/lan-bridge/internal/storage"
)

// ErrInvalidPassword is returned on a failed password login.
var ErrInvalidPassword = errors.New("invalid password")

const passwordFileName = "password.json"

type passwordFile struct {
	PasswordHash string `json:"password_hash"`
}

// AuthService handles password login. The bcrypt hash is persisted in the
// data directory; the cleartext password is never stored.
type AuthService struct {
	tokens *TokenService
	path   string
}

// NewAuthService creates the auth service and seeds the password file if it
// does not exist yet (from LAN_BRIDGE_PASSWORD, default "lan-bridge").
func NewAuthService(tokens *TokenService, dataDir string) *AuthService {
	as := &AuthService{
		tokens: tokens,
		path:   filepath.Join(dataDir, passwordFileName),
	}
	if !as.HasPassword() {
		password := os.Getenv("LAN_BRIDGE_PASSWORD")
		if password == "" {
			password = "lan-bridge"
		}
		if err := as.SetPassword(password); err != nil {
			log.Printf("failed to seed password file: %v", err)
		}
	}
	return as
}

// HasPassword reports whether a password hash is on disk.
func (as *AuthService) HasPassword() bool {
	var pf passwordFile
	if err := storage.ReadJSON(as.path, &pf); err != nil {
		return false
	}
	return pf.PasswordHash != ""
}

// SetPassword hashes and persists a new password.
func (as *AuthService) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return storage.WriteJSON(as.path, passwordFile{PasswordHash: string(hash)})
}

// VerifyPassword checks a candidate password against the stored hash.
func (as *AuthService) VerifyPassword(password string) bool {
	var pf passwordFile
	if err := storage.ReadJSON(as.path, &pf); err != nil {
		log.Printf("failed to read password file: %v", err)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(pf.PasswordHash), []byte(password)) == nil
}

// Login verifies the password and returns the live session token.
func (as *AuthService) Login(password string) (string, error) {
	if !as.VerifyPassword(password) {
		return "", ErrInvalidPassword
	}
	return as.tokens.SessionToken(), nil
}
