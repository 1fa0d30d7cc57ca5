package models

// VisibilityScope controls which event members can see a list.
type VisibilityScope string

const (
	// ScopeEvent makes the list visible to every member of the event.
	ScopeEvent VisibilityScope = "event"
	// ScopeSelected restricts the list to an explicit subset of members.
	ScopeSelected VisibilityScope = "selected"
)

// AssignmentMode selects the random item assignment algorithm.
type AssignmentMode string

const (
	// ModeOnePerMember pairs members and items 1:1; excess items stay unassigned.
	ModeOnePerMember AssignmentMode = "one_per_member"
	// ModeDistributeAll spreads every unassigned item across members round-robin.
	ModeDistributeAll AssignmentMode = "distribute_all"
)

// Valid reports whether m is a known mode.
func (m AssignmentMode) Valid() bool {
	return m == ModeOnePerMember || m == ModeDistributeAll
}

// List is a gift list belonging to one event.
type List struct {
	// ID is the unique identifier for the list (UUID format).
	ID string

	// EventID is the event this list belongs to.
	EventID string

	// OwnerID is the user who created the list.
	OwnerID string

	// Name is the display name of the list.
	Name string

	// Scope controls who can see the list.
	Scope VisibilityScope

	// RandomAssignmentEnabled turns on random item (giver) assignment for the list.
	RandomAssignmentEnabled bool

	// RandomAssignmentMode selects the giver assignment algorithm.
	RandomAssignmentMode AssignmentMode

	// RandomAssignmentExecutedAt is the Unix timestamp of the last assignment run
	// that made at least one assignment. Zero means never.
	RandomAssignmentExecutedAt int64

	// RandomReceiverAssignmentEnabled turns on anonymous receiver assignment.
	RandomReceiverAssignmentEnabled bool

	// RecipientIDs are the members designated as recipients of this list.
	// Populated by the store on reads.
	RecipientIDs []string

	// ViewerIDs are the members allowed to see a ScopeSelected list.
	// Populated by the store on reads; ignored for ScopeEvent.
	ViewerIDs []string

	// CreatedAt is the Unix timestamp when the list was created.
	CreatedAt int64
}

// IsRecipient reports whether userID is a designated recipient of the list.
func (l *List) IsRecipient(userID string) bool {
	for _, id := range l.RecipientIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether userID may see the list at all. Owners always can.
func (l *List) VisibleTo(userID string) bool {
	if l.Scope != ScopeSelected || l.OwnerID == userID {
		return true
	}
	for _, id := range l.ViewerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CollaborativeMode reports whether both random assignment layers are enabled.
func (l *List) CollaborativeMode() bool {
	return l.RandomAssignmentEnabled && l.RandomReceiverAssignmentEnabled
}

// AssignmentConfig is the mutable assignment configuration of a list.
type AssignmentConfig struct {
	RandomAssignmentEnabled         bool
	RandomAssignmentMode            AssignmentMode
	RandomReceiverAssignmentEnabled bool
}
