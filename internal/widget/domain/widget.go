package domain

// Widget describes the widget session a host driver acts for.
// RoomID is empty when the widget is not bound to a room (e.g. an account widget).
type Widget struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Origin string `json:"origin"`
}

// HasRoom reports whether the widget has a current room context.
func (w Widget) HasRoom() bool {
	return w.RoomID != ""
}
