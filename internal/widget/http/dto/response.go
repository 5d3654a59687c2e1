package dto

import (
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// SessionResponse describes an opened widget session. Token is only returned
// when the session is opened.
type SessionResponse struct {
	ID        string        `json:"id"`
	Token     string        `json:"token"`
	Widget    domain.Widget `json:"widget"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// MapSessionToResponse converts an opened session and its plain token.
func MapSessionToResponse(session *domain.Session, plainToken string) SessionResponse {
	return SessionResponse{
		ID:        session.ID.String(),
		Token:     plainToken,
		Widget:    session.Widget,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
}

// CapabilitiesResponse lists the approved capabilities.
type CapabilitiesResponse struct {
	Approved domain.CapabilitySet `json:"approved"`
}

// SendEventResponse identifies the stored event.
type SendEventResponse struct {
	RoomID  string `json:"room_id"`
	EventID string `json:"event_id"`
}

// PromptResponse is a prompt waiting for the user.
type PromptResponse struct {
	ID        string               `json:"id"`
	Kind      string               `json:"kind"`
	Widget    domain.Widget        `json:"widget"`
	Requested domain.CapabilitySet `json:"requested,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// ListPromptsResponse wraps the open prompts.
type ListPromptsResponse struct {
	Data []PromptResponse `json:"data"`
}

// MapPromptToResponse converts a domain prompt to its response.
func MapPromptToResponse(prompt domain.Prompt) PromptResponse {
	response := PromptResponse{
		ID:        prompt.ID.String(),
		Kind:      string(prompt.Kind),
		Widget:    prompt.Widget,
		Requested: prompt.Requested,
		CreatedAt: prompt.CreatedAt,
	}
	if !prompt.ExpiresAt.IsZero() {
		expiresAt := prompt.ExpiresAt
		response.ExpiresAt = &expiresAt
	}
	return response
}

// MapPromptsToResponse converts prompts, keeping an empty list as [].
func MapPromptsToResponse(prompts []domain.Prompt) ListPromptsResponse {
	data := make([]PromptResponse, 0, len(prompts))
	for _, p := range prompts {
		data = append(data, MapPromptToResponse(p))
	}
	return ListPromptsResponse{Data: data}
}

// AuditLogResponse is a recorded host decision.
type AuditLogResponse struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	WidgetID  string         `json:"widget_id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListAuditLogsResponse wraps a page of audit logs.
type ListAuditLogsResponse struct {
	Data []AuditLogResponse `json:"data"`
}

// MapAuditLogsToResponse converts audit logs to their response.
func MapAuditLogsToResponse(auditLogs []*domain.AuditLog) ListAuditLogsResponse {
	data := make([]AuditLogResponse, 0, len(auditLogs))
	for _, a := range auditLogs {
		data = append(data, AuditLogResponse{
			ID:        a.ID.String(),
			RequestID: a.RequestID.String(),
			WidgetID:  a.WidgetID,
			UserID:    a.UserID,
			Action:    string(a.Action),
			Outcome:   a.Outcome,
			Metadata:  a.Metadata,
			CreatedAt: a.CreatedAt,
		})
	}
	return ListAuditLogsResponse{Data: data}
}
