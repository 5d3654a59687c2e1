// Package usecase implements the host side of the widget contract: policy and
// prompt based capability negotiation, sending room events and the OpenID
// identity-assertion handshake.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
)

// EventRepository persists events sent on behalf of widgets.
// Implementations must support transaction-aware operations via context propagation.
type EventRepository interface {
	// Create stores a new room event.
	Create(ctx context.Context, event *domain.RoomEvent) error

	// Get retrieves an event by ID. Returns ErrEventNotFound if not found.
	Get(ctx context.Context, eventID string) (*domain.RoomEvent, error)
}

// AuditLogRepository persists host decisions.
type AuditLogRepository interface {
	Create(ctx context.Context, auditLog *domain.AuditLog) error

	// List returns audit logs newest first.
	List(ctx context.Context, offset, limit int) ([]*domain.AuditLog, error)

	// DeleteOlderThan removes logs created before olderThan. With dryRun it only
	// counts them.
	DeleteOlderThan(ctx context.Context, olderThan time.Time, dryRun bool) (int64, error)
}

// Prompter asks the user to confirm what a widget requested. Implementations
// must return when ctx is done.
type Prompter interface {
	// ConfirmCapabilities returns the capabilities the user approved out of requested.
	ConfirmCapabilities(
		ctx context.Context,
		widget domain.Widget,
		requested domain.CapabilitySet,
	) (domain.CapabilitySet, error)

	// ConfirmOpenID returns whether the user shares their identity with the widget.
	ConfirmOpenID(ctx context.Context, widget domain.Widget) (domain.OpenIDDecision, error)
}

// ApprovalCache remembers identity-assertion decisions for the current process.
type ApprovalCache interface {
	// Get returns the remembered decision for the widget and its user.
	Get(widget domain.Widget) (allowed bool, found bool)

	// Put remembers a decision.
	Put(widget domain.Widget, allowed bool)
}

// CapabilityUseCase negotiates widget capabilities.
type CapabilityUseCase interface {
	// Negotiate returns the approved subset of requested. It never fails and
	// never mutates requested.
	Negotiate(ctx context.Context, widget domain.Widget, requested domain.CapabilitySet) domain.CapabilitySet
}

// EventUseCase sends events on behalf of widgets.
type EventUseCase interface {
	// Send stores the event in the widget's room. On error nothing was stored.
	Send(
		ctx context.Context,
		widget domain.Widget,
		eventType string,
		content json.RawMessage,
		stateKey *string,
	) (*domain.SendEventDetails, error)
}

// OpenIDUseCase coordinates identity-assertion handshakes.
type OpenIDUseCase interface {
	// Ask starts a handshake for widget and returns without waiting for the user.
	// The outcome is pushed into observer.
	Ask(ctx context.Context, widget domain.Widget, observer driver.OpenIDObserver)
}

// AuditLogUseCase records and maintains the decision audit trail.
type AuditLogUseCase interface {
	Create(
		ctx context.Context,
		widget domain.Widget,
		action domain.AuditAction,
		outcome string,
		metadata map[string]any,
	) error

	List(ctx context.Context, offset, limit int) ([]*domain.AuditLog, error)

	// DeleteOlderThan removes logs older than days days and returns how many
	// were (or, with dryRun, would be) removed.
	DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error)
}

// PromptUseCase is the host UI side of the prompter: it lists open questions
// and delivers the user's answers.
type PromptUseCase interface {
	// List returns the prompts waiting for an answer, oldest first.
	List(ctx context.Context) []domain.Prompt

	// Resolve answers a prompt. Returns ErrPromptNotFound when the prompt is
	// unknown, already answered or abandoned by its requester.
	Resolve(ctx context.Context, promptID uuid.UUID, resolution domain.PromptResolution) error
}

// SessionUseCase manages the widget sessions the host opens. A session fixes
// the room, user and origin every widget request acts for.
type SessionUseCase interface {
	// Open starts a session for widget and returns it with the plain bearer
	// token, which is not retrievable later.
	Open(ctx context.Context, widget domain.Widget) (*domain.Session, string, error)

	// Authenticate resolves a bearer token. Returns ErrSessionNotFound for
	// unknown or expired tokens.
	Authenticate(ctx context.Context, plainToken string) (*domain.Session, error)

	// Close ends a session. Returns ErrSessionNotOpen when it does not exist.
	Close(ctx context.Context, sessionID uuid.UUID) error
}
