package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records a security decision the host took on behalf of a widget.
type AuditLog struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	WidgetID  string
	UserID    string
	Action    AuditAction
	Outcome   string
	Metadata  map[string]any
	CreatedAt time.Time
}
