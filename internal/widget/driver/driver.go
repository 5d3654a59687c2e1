// Package driver defines the contract a host implements to mediate an untrusted
// widget: capability negotiation, sending room events and the OpenID
// identity-assertion handshake.
//
// DenyAll implements every operation with the fail-closed defaults. Hosts embed
// it and override only the operations they support.
package driver

import (
	"context"
	"encoding/json"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// CapabilityNegotiator decides which requested capabilities a widget receives.
type CapabilityNegotiator interface {
	// ValidateCapabilities returns the approved subset of requested. It never
	// fails: denial is an empty set. Implementations must not mutate requested
	// and must never return capabilities absent from it.
	ValidateCapabilities(ctx context.Context, requested domain.CapabilitySet) domain.CapabilitySet
}

// EventDispatcher sends events on behalf of a widget.
type EventDispatcher interface {
	// SendEvent sends an event of eventType with content into the widget's room.
	// A nil stateKey sends a timeline event; a non-nil one (including "") sends
	// a state event for that key. Callers check capabilities before calling.
	// An error means nothing was sent.
	SendEvent(
		ctx context.Context,
		eventType string,
		content json.RawMessage,
		stateKey *string,
	) (*domain.SendEventDetails, error)
}

// IdentityAssertionCoordinator runs the OpenID handshake.
type IdentityAssertionCoordinator interface {
	// AskOpenID returns without waiting for the outcome. The coordinator pushes
	// zero or one pending update followed by exactly one terminal update into
	// observer, possibly from another goroutine.
	AskOpenID(ctx context.Context, observer OpenIDObserver)
}

// Driver is the full host contract.
type Driver interface {
	CapabilityNegotiator
	EventDispatcher
	IdentityAssertionCoordinator
}

// OpenIDObserver receives the updates of one identity-assertion handshake.
// Push returns an error when the update breaks the handshake ordering; the
// update is then discarded.
type OpenIDObserver interface {
	Push(update domain.OpenIDUpdate) error
}

// DenyAll is the fail-closed Driver: no capabilities, no sends, no identity.
type DenyAll struct{}

var _ Driver = DenyAll{}

// ValidateCapabilities approves nothing.
func (DenyAll) ValidateCapabilities(ctx context.Context, requested domain.CapabilitySet) domain.CapabilitySet {
	return domain.NewCapabilitySet()
}

// SendEvent always fails with domain.ErrSendNotImplemented.
func (DenyAll) SendEvent(
	ctx context.Context,
	eventType string,
	content json.RawMessage,
	stateKey *string,
) (*domain.SendEventDetails, error) {
	return nil, domain.ErrSendNotImplemented
}

// AskOpenID pushes a single blocked update.
func (DenyAll) AskOpenID(ctx context.Context, observer OpenIDObserver) {
	_ = observer.Push(domain.BlockedUpdate())
}
