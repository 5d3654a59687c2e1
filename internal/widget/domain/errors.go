package domain

import (
	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
)

// Widget host errors.
var (
	// ErrSendNotImplemented is returned by hosts that do not support sending events.
	ErrSendNotImplemented = apperrors.Wrap(apperrors.ErrNotImplemented, "send failed: not overridden")

	// ErrNoRoomContext indicates the widget has no current room to send into.
	ErrNoRoomContext = apperrors.Wrap(apperrors.ErrInvalidInput, "send failed: no room context")

	// ErrInvalidEventType indicates an empty or oversized event type.
	ErrInvalidEventType = apperrors.Wrap(apperrors.ErrInvalidInput, "send failed: invalid event type")

	// ErrInvalidEventContent indicates content that is not a JSON object.
	ErrInvalidEventContent = apperrors.Wrap(apperrors.ErrInvalidInput, "send failed: content must be a JSON object")

	// ErrEventNotFound indicates a stored room event does not exist.
	ErrEventNotFound = apperrors.Wrap(apperrors.ErrNotFound, "room event not found")

	// ErrPromptNotFound indicates the prompt is unknown or already settled.
	ErrPromptNotFound = apperrors.Wrap(apperrors.ErrNotFound, "prompt not found")

	// ErrSessionNotFound indicates a missing, unknown or expired widget session token.
	ErrSessionNotFound = apperrors.Wrap(apperrors.ErrUnauthorized, "widget session not found")

	// ErrSessionNotOpen indicates a session ID the host tried to close is unknown or already closed.
	ErrSessionNotOpen = apperrors.Wrap(apperrors.ErrNotFound, "widget session is not open")

	// ErrSessionMismatch indicates a request whose widget or origin differs from its session.
	ErrSessionMismatch = apperrors.Wrap(apperrors.ErrForbidden, "request does not match the widget session")
)
