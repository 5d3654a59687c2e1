package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
)

// sessionTokenService issues widget session tokens and hashes them with SHA-256.
type sessionTokenService struct{}

// Generate returns a 256-bit URL-safe token and its hash. Only the hash is kept
// by the host.
func (s *sessionTokenService) Generate() (plainToken string, tokenHash string, err error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate session token")
	}

	plainToken = base64.RawURLEncoding.EncodeToString(raw)
	return plainToken, s.Hash(plainToken), nil
}

// Hash returns the hex SHA-256 of plainToken.
func (s *sessionTokenService) Hash(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}

// NewSessionTokenService creates a SessionTokenService.
func NewSessionTokenService() SessionTokenService {
	return &sessionTokenService{}
}
