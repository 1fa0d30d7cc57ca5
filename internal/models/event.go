package models

// Role is a member's role within one event. Roles are scoped per event, not global.
type Role string

const (
	RoleGiver     Role = "giver"
	RoleRecipient Role = "recipient"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGiver, RoleRecipient, RoleAdmin:
		return true
	}
	return false
}

// Event is a gift-giving occasion that members join.
type Event struct {
	// ID is the unique identifier for the event (UUID format).
	ID string

	// Name is the display name of the event (e.g., "Family Christmas").
	Name string

	// CreatedBy is the user ID of the member who created the event.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the event was created.
	CreatedAt int64
}

// Member is a participant in an event.
type Member struct {
	// EventID is the event this membership belongs to.
	EventID string

	// UserID identifies the user, as supplied by the surrounding application's auth layer.
	UserID string

	// Role is the member's role in this event.
	Role Role

	// JoinedAt is the Unix timestamp when the user joined the event.
	JoinedAt int64
}

// IsAdmin reports whether the member administers the event.
func (m *Member) IsAdmin() bool {
	return m != nil && m.Role == RoleAdmin
}
