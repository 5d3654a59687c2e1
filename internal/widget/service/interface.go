// Package service provides the technical services behind the widget host:
// identity token issuance, session tokens and event ID generation.
package service

import (
	"context"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// IdentityAuthority issues the credentials handed to a widget once an identity
// assertion is allowed. Verifying them is the receiving party's job.
type IdentityAuthority interface {
	// Issue creates fresh credentials asserting the widget's user.
	Issue(ctx context.Context, widget domain.Widget) (*domain.OpenIDCredentials, error)
}

// EventIDGenerator assigns IDs to events sent on behalf of widgets.
type EventIDGenerator interface {
	// NewEventID returns a unique event ID of the form "$opaque:server".
	NewEventID() (string, error)
}

// SessionTokenService creates the bearer tokens widgets present to the host.
type SessionTokenService interface {
	// Generate returns a new plain token and the hash to store for it.
	Generate() (plainToken string, tokenHash string, err error)

	// Hash returns the stored form of plainToken.
	Hash(plainToken string) string
}
