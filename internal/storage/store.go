// Package storage provides abstractions for persistent data storage.
//
// The backing store is a transactional relational database. Every invariant that must
// hold across concurrent service instances (one primary claim per item, one pending
// split request per requester, one assignment per item) is enforced here through
// uniqueness constraints and conditional writes, never through in-process locks.
//
// Lookups return errors.ErrNotFound (internal/errors) for missing rows.
package storage

import (
	"context"

	"github.com/mmynk/giftwiser/internal/models"
)

// MembershipReader looks up event membership and roles.
type MembershipReader interface {
	// GetMember returns the membership of userID in eventID, or ErrNotFound.
	GetMember(ctx context.Context, eventID, userID string) (*models.Member, error)

	// ListMembers returns all members of an event ordered by user ID.
	ListMembers(ctx context.Context, eventID string) ([]models.Member, error)
}

// CatalogReader reads lists and items.
type CatalogReader interface {
	// GetList returns a list with its recipients and viewers populated.
	GetList(ctx context.Context, listID string) (*models.List, error)

	// GetItem returns an item with EventID and ClaimerIDs populated.
	GetItem(ctx context.Context, itemID string) (*models.Item, error)

	// ListItems returns every item of a list with ClaimerIDs populated.
	ListItems(ctx context.Context, listID string) ([]models.Item, error)

	// ListAssignmentExclusions returns the users excluded from receiver assignment.
	ListAssignmentExclusions(ctx context.Context, listID string) ([]string, error)
}

// ClaimStore persists claims.
type ClaimStore interface {
	// CreateClaim atomically inserts the primary claim on an item.
	// If userID already holds a claim it is returned with created=false.
	// If anyone else holds one, ErrAlreadyClaimed is returned.
	CreateClaim(ctx context.Context, itemID, userID string) (claim *models.Claim, created bool, err error)

	// DeleteClaim removes userID's claim on the item, promoting a shared claim to
	// primary and denying pending split requests addressed to the departing claimer.
	// Returns ErrNotClaimedByYou if userID holds no claim.
	DeleteClaim(ctx context.Context, itemID, userID string) error

	// GetClaim returns a claim by ID.
	GetClaim(ctx context.Context, claimID string) (*models.Claim, error)

	// SetClaimPurchased updates the purchased flag of a claim owned by userID.
	SetClaimPurchased(ctx context.Context, claimID, userID string, purchased bool) (*models.Claim, error)

	// ListClaims returns the claims on an item, primary first.
	ListClaims(ctx context.Context, itemID string) ([]models.Claim, error)

	// CountClaimedItems returns the number of claimed items per list. Lists with no
	// claimed items are absent from the map.
	CountClaimedItems(ctx context.Context, listIDs []string) (map[string]int, error)
}

// SplitStore persists split requests.
type SplitStore interface {
	// CreateSplitRequest inserts a pending request.
	// Returns ErrDuplicatePendingRequest if the requester already has one pending.
	CreateSplitRequest(ctx context.Context, req *models.SplitRequest) error

	// GetSplitRequest returns a request by ID.
	GetSplitRequest(ctx context.Context, requestID string) (*models.SplitRequest, error)

	// AcceptSplitRequest transitions a pending request to accepted and inserts the
	// requester's shared claim in the same transaction.
	// Returns ErrAlreadyResolved if the request is no longer pending and
	// ErrAlreadyClaimed if the item is already shared.
	AcceptSplitRequest(ctx context.Context, requestID string, resolvedAt int64) (*models.Claim, error)

	// DenySplitRequest transitions a pending request to denied.
	DenySplitRequest(ctx context.Context, requestID string, resolvedAt int64) error

	// ListSplitRequests returns requests addressed to originalClaimerID with the given
	// status, oldest first. An empty status matches every status.
	ListSplitRequests(ctx context.Context, originalClaimerID string, status models.SplitStatus) ([]models.SplitRequest, error)
}

// AssignmentStore writes random assignment results. Each write is a conditional
// single-row update, so two concurrent runs can never both assign the same item.
type AssignmentStore interface {
	// AssignGiver sets the item's giver if it has none and no claim.
	// Returns false if the item was assigned or claimed in the meantime.
	AssignGiver(ctx context.Context, itemID, giverID string) (bool, error)

	// AssignRecipient sets the item's secret recipient if it has none and
	// recipientID does not currently claim the item.
	AssignRecipient(ctx context.Context, itemID, recipientID string) (bool, error)

	// MarkAssignmentExecuted stamps the list's last assignment time.
	MarkAssignmentExecuted(ctx context.Context, listID string, at int64) error
}

// ActivityStore is the activity outbox.
type ActivityStore interface {
	AppendActivity(ctx context.Context, rec *models.ActivityRecord) error

	// ListActivity returns records of an event created at or after since, oldest first.
	ListActivity(ctx context.Context, eventID string, since int64, limit int) ([]models.ActivityRecord, error)
}

// SetupStore holds the writes owned by the surrounding application (events, lists,
// items, memberships). The engine only reads this data.
type SetupStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	AddMember(ctx context.Context, member *models.Member) error
	CreateList(ctx context.Context, list *models.List) error
	UpdateAssignmentConfig(ctx context.Context, listID string, cfg models.AssignmentConfig) error
	AddListRecipient(ctx context.Context, listID, userID string) error
	AddListViewer(ctx context.Context, listID, userID string) error
	AddAssignmentExclusion(ctx context.Context, listID, userID string) error
	CreateItem(ctx context.Context, item *models.Item) error

	// DeleteItem removes an item together with its claims and split requests.
	DeleteItem(ctx context.Context, itemID string) error

	// DeleteList removes a list together with its items, claims and split requests.
	DeleteList(ctx context.Context, listID string) error
}

// Store defines the full storage surface.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the engine or service layers.
type Store interface {
	MembershipReader
	CatalogReader
	ClaimStore
	SplitStore
	AssignmentStore
	ActivityStore
	SetupStore

	// Close releases any resources held by the store.
	Close() error
}
