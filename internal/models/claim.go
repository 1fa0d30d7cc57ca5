package models

// MaxClaimsPerItem bounds claims on one item: the primary claim plus one accepted split.
const MaxClaimsPerItem = 2

// ClaimSlot distinguishes the primary claim from an accepted split share.
type ClaimSlot int

const (
	SlotPrimary ClaimSlot = 0
	SlotShared  ClaimSlot = 1
)

// Claim records that a member has reserved an item.
type Claim struct {
	// ID is the unique identifier for the claim (UUID format).
	ID string

	// ItemID is the claimed item.
	ItemID string

	// ClaimerID is the member holding the claim.
	ClaimerID string

	// Slot is SlotPrimary for the original claim and SlotShared for an accepted split.
	Slot ClaimSlot

	// Purchased is toggled by the claimer once the gift is bought.
	Purchased bool

	// CreatedAt is the Unix timestamp when the claim was created.
	CreatedAt int64
}

// SplitStatus is the state of a split request.
type SplitStatus string

const (
	SplitPending  SplitStatus = "pending"
	SplitAccepted SplitStatus = "accepted"
	SplitDenied   SplitStatus = "denied"
)

// Terminal reports whether no further transition is allowed.
func (s SplitStatus) Terminal() bool {
	return s == SplitAccepted || s == SplitDenied
}

// SplitRequest is a proposal by a second member to share an already-claimed item.
type SplitRequest struct {
	// ID is the unique identifier for the request (UUID format).
	ID string

	// ItemID is the item the requester wants to share.
	ItemID string

	// RequesterID is the member asking to join the claim.
	RequesterID string

	// OriginalClaimerID is the primary claimer at the time of the request.
	OriginalClaimerID string

	// Status moves pending -> accepted | denied exactly once.
	Status SplitStatus

	// CreatedAt is the Unix timestamp when the request was made.
	CreatedAt int64

	// ResolvedAt is the Unix timestamp of the accept/deny transition. Zero while pending.
	ResolvedAt int64
}

// ListClaimCount is the number of claimed items on a list as seen by one viewer.
type ListClaimCount struct {
	ListID string

	// Count is zero when Withheld is true.
	Count int

	// Withheld is true when the viewer may not learn the claim count.
	Withheld bool
}
