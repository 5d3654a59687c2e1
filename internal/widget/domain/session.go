package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a widget instance to the room, user and origin the host
// embedded it for. The host opens it; the widget only holds its bearer token,
// so nothing a widget sends can change who it acts for.
type Session struct {
	ID        uuid.UUID
	TokenHash string
	Widget    Widget
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session is no longer usable at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
