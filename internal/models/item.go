package models

// Item is a single gift on a list.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// ListID is the list this item belongs to.
	ListID string

	// EventID is the event of the owning list. Populated by the store on reads.
	EventID string

	// Description is the name or description of the item (e.g., "Board game").
	Description string

	// AssignedGiverID is the member chosen by random item assignment. Empty if unassigned.
	AssignedGiverID string

	// AssignedRecipientID is the anonymous recipient chosen by random receiver
	// assignment. Empty if unassigned.
	AssignedRecipientID string

	// ClaimerIDs are the users currently holding a claim on the item, primary claimer
	// first. Populated by the store on reads.
	ClaimerIDs []string

	// CreatedAt is the Unix timestamp when the item was created.
	CreatedAt int64
}

// Claimed reports whether the item has at least one claim.
func (i *Item) Claimed() bool {
	return len(i.ClaimerIDs) > 0
}

// ClaimedBy reports whether userID holds a claim on the item.
func (i *Item) ClaimedBy(userID string) bool {
	for _, id := range i.ClaimerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PrimaryClaimerID returns the original claimer, or "" if the item is unclaimed.
func (i *Item) PrimaryClaimerID() string {
	if len(i.ClaimerIDs) == 0 {
		return ""
	}
	return i.ClaimerIDs[0]
}

// Purchasers returns everyone buying the item: its claimers and its assigned giver.
func (i *Item) Purchasers() []string {
	out := append([]string(nil), i.ClaimerIDs...)
	if i.AssignedGiverID != "" && !i.ClaimedBy(i.AssignedGiverID) {
		out = append(out, i.AssignedGiverID)
	}
	return out
}
