// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/json"

	validation "github.com/jellydator/validation"

	customValidation "github.com/KB1RD/matrix-widget-api/internal/validation"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// OpenSessionRequest is sent by the host UI when it embeds a widget. The
// session it opens fixes the room, user and origin every widget request acts for.
type OpenSessionRequest struct {
	WidgetID string `json:"widget_id"`
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Origin   string `json:"origin"`
}

// Validate checks if the open session request is valid. The room is optional
// for widgets that are not bound to a room.
func (r *OpenSessionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.WidgetID,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
		validation.Field(&r.RoomID, customValidation.RoomID),
		validation.Field(&r.UserID, validation.Required, customValidation.UserID),
		validation.Field(&r.Origin, validation.Required, customValidation.Origin),
	)
}

// ToWidget builds the domain widget the session acts for.
func (r *OpenSessionRequest) ToWidget() domain.Widget {
	return domain.Widget{
		ID:     r.WidgetID,
		RoomID: r.RoomID,
		UserID: r.UserID,
		Origin: r.Origin,
	}
}

// NegotiateCapabilitiesRequest contains the capabilities a widget asks for.
type NegotiateCapabilitiesRequest struct {
	Requested []string `json:"requested"`
}

// Validate checks if the negotiate request is valid. An empty request is
// allowed and approves nothing.
func (r *NegotiateCapabilitiesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Requested,
			validation.Each(validation.Required, customValidation.NotBlank, validation.Length(1, 512)),
		),
	)
}

// RequestedSet returns the requested capabilities as a set.
func (r *NegotiateCapabilitiesRequest) RequestedSet() domain.CapabilitySet {
	set := domain.NewCapabilitySet()
	for _, c := range r.Requested {
		set[domain.Capability(c)] = struct{}{}
	}
	return set
}

// SendEventRequest contains an event to send into the session's room.
// StateKey is absent for timeline events; "" addresses the empty state key.
type SendEventRequest struct {
	Type     string          `json:"type"`
	Content  json.RawMessage `json:"content"`
	StateKey *string         `json:"state_key,omitempty"`
}

// Validate checks if the send event request is valid. Room presence is checked
// by the host so that a missing room maps to its own error.
func (r *SendEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, domain.MaxEventTypeLength),
		),
	)
}

// ResolvePromptRequest contains the user's answer to a prompt.
type ResolvePromptRequest struct {
	Approved     bool     `json:"approved"`
	Capabilities []string `json:"capabilities"`
	Remember     bool     `json:"remember"`
}

// Validate checks if the resolve request is valid.
func (r *ResolvePromptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Capabilities,
			validation.Each(validation.Required, customValidation.NotBlank),
		),
	)
}

// ToResolution maps the request to the domain resolution.
func (r *ResolvePromptRequest) ToResolution() domain.PromptResolution {
	capabilities := domain.NewCapabilitySet()
	for _, c := range r.Capabilities {
		capabilities[domain.Capability(c)] = struct{}{}
	}
	return domain.PromptResolution{
		Approved:     r.Approved,
		Capabilities: capabilities,
		Remember:     r.Remember,
	}
}
