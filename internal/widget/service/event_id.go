package service

import (
	"crypto/rand"
	"encoding/base64"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
)

type randomEventIDGenerator struct {
	serverName string
}

// NewEventID returns "$" + 18 random bytes (URL-safe base64) + ":" + server name.
func (g *randomEventIDGenerator) NewEventID() (string, error) {
	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return "", apperrors.Wrap(err, "failed to generate event id")
	}
	return "$" + base64.RawURLEncoding.EncodeToString(raw) + ":" + g.serverName, nil
}

// NewEventIDGenerator creates an EventIDGenerator scoped to serverName.
func NewEventIDGenerator(serverName string) EventIDGenerator {
	return &randomEventIDGenerator{serverName: serverName}
}
