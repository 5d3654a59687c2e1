package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// tokenBytes is the entropy of an issued access token (256 bits).
const tokenBytes = 32

// localIdentityAuthority issues random bearer tokens for the configured homeserver.
type localIdentityAuthority struct {
	serverName string
	expiresIn  time.Duration
}

// Issue generates a URL-safe random access token. It refuses widgets without a
// user, since there is nobody to assert.
func (a *localIdentityAuthority) Issue(
	ctx context.Context,
	widget domain.Widget,
) (*domain.OpenIDCredentials, error) {
	if widget.UserID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "widget has no user to assert")
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate openid token")
	}

	return &domain.OpenIDCredentials{
		AccessToken:      base64.RawURLEncoding.EncodeToString(raw),
		TokenType:        "Bearer",
		MatrixServerName: a.serverName,
		ExpiresIn:        int(a.expiresIn.Seconds()),
	}, nil
}

// NewLocalIdentityAuthority creates an IdentityAuthority for serverName whose
// tokens expire after expiresIn.
func NewLocalIdentityAuthority(serverName string, expiresIn time.Duration) IdentityAuthority {
	return &localIdentityAuthority{
		serverName: serverName,
		expiresIn:  expiresIn,
	}
}
