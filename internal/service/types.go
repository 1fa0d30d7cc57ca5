package service

import (
	"github.com/mmynk/giftwiser/internal/assign"
	"github.com/mmynk/giftwiser/internal/ledger"
	"github.com/mmynk/giftwiser/internal/models"
)

// Empty is the response of procedures that return nothing.
type Empty struct{}

// Claim is the wire form of models.Claim.
type Claim struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	ClaimerID string `json:"claimer_id"`
	Shared    bool   `json:"shared"`
	Purchased bool   `json:"purchased"`
	CreatedAt int64  `json:"created_at"`
}

func claimToWire(c *models.Claim) *Claim {
	if c == nil {
		return nil
	}
	return &Claim{
		ID:        c.ID,
		ItemID:    c.ItemID,
		ClaimerID: c.ClaimerID,
		Shared:    c.Slot == models.SlotShared,
		Purchased: c.Purchased,
		CreatedAt: c.CreatedAt,
	}
}

// SplitRequest is the wire form of models.SplitRequest.
type SplitRequest struct {
	ID                string `json:"id"`
	ItemID            string `json:"item_id"`
	RequesterID       string `json:"requester_id"`
	OriginalClaimerID string `json:"original_claimer_id"`
	Status            string `json:"status"`
	CreatedAt         int64  `json:"created_at"`
	ResolvedAt        int64  `json:"resolved_at,omitempty"`
}

func splitToWire(r *models.SplitRequest) *SplitRequest {
	return &SplitRequest{
		ID:                r.ID,
		ItemID:            r.ItemID,
		RequesterID:       r.RequesterID,
		OriginalClaimerID: r.OriginalClaimerID,
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
		ResolvedAt:        r.ResolvedAt,
	}
}

// ClaimService messages.

type ClaimRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type ClaimResponse struct {
	Claim *Claim `json:"claim"`
}

type UnclaimRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type SetPurchasedRequest struct {
	ClaimID   string `json:"claim_id" validate:"required"`
	Purchased bool   `json:"purchased"`
}

type ClaimCountsRequest struct {
	ListIDs []string `json:"list_ids" validate:"required,min=1,max=100,dive,required"`
}

type ListClaimCount struct {
	ListID   string `json:"list_id"`
	Count    int    `json:"count"`
	Withheld bool   `json:"withheld,omitempty"`
}

type ClaimCountsResponse struct {
	Counts []ListClaimCount `json:"counts"`
}

type ListClaimsRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type ListClaimsResponse struct {
	ItemID     string   `json:"item_id"`
	Visibility string   `json:"visibility"`
	Claimed    bool     `json:"claimed"`
	ClaimerIDs []string `json:"claimer_ids,omitempty"`
	Claims     []*Claim `json:"claims,omitempty"`
}

func claimViewToWire(v *ledger.ClaimView) *ListClaimsResponse {
	out := &ListClaimsResponse{
		ItemID:     v.ItemID,
		Visibility: string(v.Level),
		Claimed:    v.Claimed,
		ClaimerIDs: v.ClaimerIDs,
	}
	for i := range v.Claims {
		out.Claims = append(out.Claims, claimToWire(&v.Claims[i]))
	}
	return out
}

// SplitService messages.

type RequestSplitRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type SplitRequestResponse struct {
	Request *SplitRequest `json:"request"`
}

type ResolveSplitRequest struct {
	RequestID string `json:"request_id" validate:"required"`
}

type ListSplitRequestsRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=pending accepted denied"`
}

type ListSplitRequestsResponse struct {
	Requests []*SplitRequest `json:"requests"`
}

// AssignmentService messages.

type AssignmentRequest struct {
	ListID string `json:"list_id" validate:"required"`
}

type AssignItemsResponse struct {
	AssignmentsMade int `json:"assignments_made"`
	MemberCount     int `json:"member_count"`
}

type AssignReceiversResponse struct {
	AssignmentsMade int `json:"assignments_made"`
	Skipped         int `json:"skipped"`
}

// RunCombinedResponse reports both halves of a combined run. When the receiver step
// fails after giver assignment succeeded, Receivers is nil and ReceiverErrorCode names
// the failure; the giver assignments stay in place.
type RunCombinedResponse struct {
	Items             *AssignItemsResponse     `json:"items"`
	Receivers         *AssignReceiversResponse `json:"receivers,omitempty"`
	ReceiverErrorCode string                   `json:"receiver_error_code,omitempty"`
	ReceiverError     string                   `json:"receiver_error,omitempty"`
}

func itemResultToWire(r *assign.ItemResult) *AssignItemsResponse {
	if r == nil {
		return nil
	}
	return &AssignItemsResponse{AssignmentsMade: r.AssignmentsMade, MemberCount: r.MemberCount}
}

func receiverResultToWire(r *assign.ReceiverResult) *AssignReceiversResponse {
	if r == nil {
		return nil
	}
	return &AssignReceiversResponse{AssignmentsMade: r.AssignmentsMade, Skipped: r.Skipped}
}

// EventService messages.

type Event struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

type CreateEventRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type EventResponse struct {
	Event *Event `json:"event"`
}

type AddMemberRequest struct {
	EventID string `json:"event_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=giver recipient admin"`
}

type AssignmentConfig struct {
	RandomAssignmentEnabled         bool   `json:"random_assignment_enabled"`
	RandomAssignmentMode            string `json:"random_assignment_mode" validate:"omitempty,oneof=one_per_member distribute_all"`
	RandomReceiverAssignmentEnabled bool   `json:"random_receiver_assignment_enabled"`
}

func (c AssignmentConfig) toModel() models.AssignmentConfig {
	mode := models.AssignmentMode(c.RandomAssignmentMode)
	if mode == "" {
		mode = models.ModeOnePerMember
	}
	return models.AssignmentConfig{
		RandomAssignmentEnabled:         c.RandomAssignmentEnabled,
		RandomAssignmentMode:            mode,
		RandomReceiverAssignmentEnabled: c.RandomReceiverAssignmentEnabled,
	}
}

type List struct {
	ID                         string   `json:"id"`
	EventID                    string   `json:"event_id"`
	OwnerID                    string   `json:"owner_id"`
	Name                       string   `json:"name"`
	Scope                      string   `json:"scope"`
	RandomAssignmentEnabled    bool     `json:"random_assignment_enabled"`
	RandomAssignmentMode       string   `json:"random_assignment_mode"`
	RandomAssignmentExecutedAt int64    `json:"random_assignment_executed_at,omitempty"`
	RandomReceiverEnabled      bool     `json:"random_receiver_assignment_enabled"`
	RecipientIDs               []string `json:"recipient_ids,omitempty"`
	ViewerIDs                  []string `json:"viewer_ids,omitempty"`
	CreatedAt                  int64    `json:"created_at"`
}

func listToWire(l *models.List) *List {
	return &List{
		ID:                         l.ID,
		EventID:                    l.EventID,
		OwnerID:                    l.OwnerID,
		Name:                       l.Name,
		Scope:                      string(l.Scope),
		RandomAssignmentEnabled:    l.RandomAssignmentEnabled,
		RandomAssignmentMode:       string(l.RandomAssignmentMode),
		RandomAssignmentExecutedAt: l.RandomAssignmentExecutedAt,
		RandomReceiverEnabled:      l.RandomReceiverAssignmentEnabled,
		RecipientIDs:               l.RecipientIDs,
		ViewerIDs:                  l.ViewerIDs,
		CreatedAt:                  l.CreatedAt,
	}
}

type CreateListRequest struct {
	EventID      string           `json:"event_id" validate:"required"`
	Name         string           `json:"name" validate:"required,max=200"`
	Scope        string           `json:"scope" validate:"omitempty,oneof=event selected"`
	RecipientIDs []string         `json:"recipient_ids" validate:"omitempty,dive,required"`
	ViewerIDs    []string         `json:"viewer_ids" validate:"omitempty,dive,required"`
	Assignment   AssignmentConfig `json:"assignment"`
}

type ListResponse struct {
	List *List `json:"list"`
}

type GetListRequest struct {
	ListID string `json:"list_id" validate:"required"`
}

type UpdateAssignmentConfigRequest struct {
	ListID     string           `json:"list_id" validate:"required"`
	Assignment AssignmentConfig `json:"assignment"`
}

// ListUserRequest names a user to attach to a list as recipient, viewer or
// assignment exclusion.
type ListUserRequest struct {
	ListID string `json:"list_id" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
}

type Item struct {
	ID                  string `json:"id"`
	ListID              string `json:"list_id"`
	Description         string `json:"description"`
	AssignedGiverID     string `json:"assigned_giver_id,omitempty"`
	AssignedRecipientID string `json:"assigned_recipient_id,omitempty"`
	CreatedAt           int64  `json:"created_at"`
}

type CreateItemRequest struct {
	ListID      string `json:"list_id" validate:"required"`
	Description string `json:"description" validate:"required,max=500"`
}

type ItemResponse struct {
	Item *Item `json:"item"`
}

type DeleteItemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type DeleteListRequest struct {
	ListID string `json:"list_id" validate:"required"`
}

type ListActivityRequest struct {
	EventID string `json:"event_id" validate:"required"`
	Since   int64  `json:"since" validate:"min=0"`
	Limit   int    `json:"limit" validate:"omitempty,min=1,max=500"`
}

type Activity struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	ActorID      string         `json:"actor_id"`
	TargetUserID string         `json:"target_user_id,omitempty"`
	ListID       string         `json:"list_id,omitempty"`
	ItemID       string         `json:"item_id,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	CreatedAt    int64          `json:"created_at"`
}

type ListActivityResponse struct {
	Activities []*Activity `json:"activities"`
}
