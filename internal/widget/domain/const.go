// Package domain defines the widget host domain models: capabilities, room events,
// the OpenID identity-assertion handshake and the host policies that decide them.
package domain

// Capability is an opaque permission token requested by a widget.
// The host never parses its structure; policies match it as a string pattern.
type Capability string

// Well-known capabilities of the Matrix widget API. The list is not exhaustive;
// any string is a valid Capability.
const (
	// AlwaysOnScreenCapability lets the widget stay visible while the room is not in view.
	AlwaysOnScreenCapability Capability = "m.always_on_screen"

	// ScreenshotCapability lets the host ask the widget for screenshots.
	ScreenshotCapability Capability = "m.capability.screenshot"

	// StickerSendingCapability lets the widget send m.sticker events.
	StickerSendingCapability Capability = "m.sticker"

	// SendEventCapabilityPrefix prefixes per-event-type timeline send capabilities.
	SendEventCapabilityPrefix = "org.matrix.msc2762.send.event:"

	// SendStateEventCapabilityPrefix prefixes per-event-type state send capabilities.
	SendStateEventCapabilityPrefix = "org.matrix.msc2762.send.state_event:"

	// ReceiveEventCapabilityPrefix prefixes per-event-type receive capabilities.
	ReceiveEventCapabilityPrefix = "org.matrix.msc2762.receive.event:"
)

// AuditAction identifies which host decision an audit log entry records.
type AuditAction string

const (
	// CapabilitiesAuditAction records a capability negotiation.
	CapabilitiesAuditAction AuditAction = "capabilities"

	// SendEventAuditAction records an event sent on behalf of a widget.
	SendEventAuditAction AuditAction = "send_event"

	// OpenIDAuditAction records the outcome of an identity-assertion handshake.
	OpenIDAuditAction AuditAction = "openid"

	// SessionAuditAction records the host opening or closing a widget session.
	SessionAuditAction AuditAction = "session"
)

// MaxEventTypeLength bounds the event type accepted by SendEvent.
const MaxEventTypeLength = 255
