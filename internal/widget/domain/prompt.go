package domain

import (
	"time"

	"github.com/google/uuid"
)

// PromptKind tells the host UI what the user is being asked.
type PromptKind string

const (
	// CapabilitiesPromptKind asks the user to approve a set of capabilities.
	CapabilitiesPromptKind PromptKind = "capabilities"

	// OpenIDPromptKind asks the user to share their identity with the widget.
	OpenIDPromptKind PromptKind = "openid"
)

// Prompt is a question waiting for the user.
type Prompt struct {
	ID        uuid.UUID
	Kind      PromptKind
	Widget    Widget
	Requested CapabilitySet // Only set for capability prompts
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PromptResolution is the user's answer to a prompt.
// For capability prompts Capabilities holds the approved subset; for OpenID
// prompts only Approved and Remember are used.
type PromptResolution struct {
	Approved     bool
	Capabilities CapabilitySet
	Remember     bool
}
