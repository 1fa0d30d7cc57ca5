package models

// ActivityKind identifies an engine event posted for the notification subsystem.
type ActivityKind string

const (
	ActivityItemClaimed       ActivityKind = "item_claimed"
	ActivityItemUnclaimed     ActivityKind = "item_unclaimed"
	ActivityItemPurchased     ActivityKind = "item_purchased"
	ActivitySplitRequested    ActivityKind = "split_requested"
	ActivitySplitAccepted     ActivityKind = "split_accepted"
	ActivitySplitDenied       ActivityKind = "split_denied"
	ActivityItemsAssigned     ActivityKind = "items_assigned"
	ActivityReceiversAssigned ActivityKind = "receivers_assigned"
)

// Activity is an event emitted by the engine. Delivery is owned by the
// notification subsystem; the engine only records it.
type Activity struct {
	// ID is the unique identifier for the activity (UUID format).
	ID string

	// Kind is what happened.
	Kind ActivityKind

	// EventID scopes the activity to an event.
	EventID string

	// ActorID is the user who caused the activity.
	ActorID string

	// TargetUserID is the user the activity should be delivered to, if any.
	TargetUserID string

	// ListID and ItemID locate the affected entities. Either may be empty.
	ListID string
	ItemID string

	// Attributes carries kind-specific values (e.g. "request_id", "assignments_made").
	Attributes map[string]any

	// CreatedAt is the Unix timestamp when the activity was recorded.
	CreatedAt int64
}

// ActivityRecord is the persisted (outbox) form of an Activity. Payload holds the
// encoded attributes; see the activity package for the encoding.
type ActivityRecord struct {
	ID           string
	Kind         ActivityKind
	EventID      string
	ActorID      string
	TargetUserID string
	ListID       string
	ItemID       string
	Payload      []byte
	CreatedAt    int64
}
