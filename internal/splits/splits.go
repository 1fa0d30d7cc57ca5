// Package splits implements the split-request workflow: a second member asks to
// share an already-claimed item and the original claimer accepts or denies.
//
//	pending -> accepted | denied
//
// Both transitions are terminal. Acceptance adds the requester's claim in the same
// store transaction that resolves the request.
package splits

import (
	"context"
	"time"

	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/engine"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/resilience"
	"github.com/mmynk/giftwiser/internal/storage"
)

// Store is the storage surface the workflow needs.
type Store interface {
	storage.MembershipReader
	storage.CatalogReader
	storage.SplitStore
}

// Workflow implements split-request operations.
type Workflow struct {
	store Store
	deps  engine.Deps
	now   func() time.Time
}

// New creates a workflow over store.
func New(store Store, deps engine.Deps) *Workflow {
	return &Workflow{store: store, deps: deps, now: time.Now}
}

// RequestSplit asks the current claimer of itemID to share it with requesterID.
func (w *Workflow) RequestSplit(ctx context.Context, itemID, requesterID string) (req *models.SplitRequest, err error) {
	defer func() { w.deps.Observe("request_split", err) }()

	item, err := resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) (*models.Item, error) {
		return w.store.GetItem(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	if err := w.requireMember(ctx, item.EventID, requesterID); err != nil {
		return nil, err
	}
	list, err := resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) (*models.List, error) {
		return w.store.GetList(ctx, item.ListID)
	})
	if err != nil {
		return nil, err
	}
	if list.IsRecipient(requesterID) {
		return nil, domainerrors.ErrRecipientCannotClaim
	}

	original := item.PrimaryClaimerID()
	switch {
	case original == "":
		return nil, domainerrors.ErrItemNotClaimed
	case original == requesterID:
		return nil, domainerrors.ErrCannotSplitOwnClaim
	case item.ClaimedBy(requesterID):
		return nil, domainerrors.ErrAlreadyClaimed
	case len(item.ClaimerIDs) >= models.MaxClaimsPerItem:
		return nil, domainerrors.ErrAlreadyClaimed.WithMessage("item is already shared")
	}

	req = &models.SplitRequest{
		ItemID:            itemID,
		RequesterID:       requesterID,
		OriginalClaimerID: original,
	}
	if err := w.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return w.store.CreateSplitRequest(ctx, req)
	}); err != nil {
		return nil, err
	}

	w.deps.Log().Info("Split requested",
		"request_id", req.ID,
		"item_id", itemID,
		"requester_id", requesterID,
		"original_claimer_id", original)
	w.deps.Emit(ctx, models.Activity{
		Kind:         models.ActivitySplitRequested,
		EventID:      item.EventID,
		ActorID:      requesterID,
		TargetUserID: original,
		ListID:       item.ListID,
		ItemID:       itemID,
		Attributes:   map[string]any{"request_id": req.ID},
	})
	w.deps.Publish(changefeed.Change{
		Kind: changefeed.KindSplitRequest, ID: req.ID, Op: changefeed.OpCreated,
		ListID: item.ListID, ItemID: itemID,
	})
	return req, nil
}

// AcceptSplit resolves a pending request as accepted and adds the requester's claim.
// Only the original claimer may accept.
func (w *Workflow) AcceptSplit(ctx context.Context, requestID, callerID string) (claim *models.Claim, err error) {
	defer func() { w.deps.Observe("accept_split", err) }()

	req, err := w.authorize(ctx, requestID, callerID)
	if err != nil {
		return nil, err
	}

	claim, err = resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) (*models.Claim, error) {
		return w.store.AcceptSplitRequest(ctx, requestID, w.now().Unix())
	})
	if err != nil {
		return nil, err
	}

	w.resolved(ctx, req, models.ActivitySplitAccepted, map[string]any{"claim_id": claim.ID})
	w.deps.Publish(changefeed.Change{
		Kind: changefeed.KindClaim, ID: claim.ID, Op: changefeed.OpCreated, ItemID: req.ItemID,
	})
	return claim, nil
}

// DenySplit resolves a pending request as denied. Only the original claimer may deny.
func (w *Workflow) DenySplit(ctx context.Context, requestID, callerID string) (err error) {
	defer func() { w.deps.Observe("deny_split", err) }()

	req, err := w.authorize(ctx, requestID, callerID)
	if err != nil {
		return err
	}

	if err := w.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return w.store.DenySplitRequest(ctx, requestID, w.now().Unix())
	}); err != nil {
		return err
	}

	w.resolved(ctx, req, models.ActivitySplitDenied, nil)
	return nil
}

// ListSplitRequests returns requests addressed to callerID. An empty status lists all.
func (w *Workflow) ListSplitRequests(ctx context.Context, callerID string, status models.SplitStatus) ([]models.SplitRequest, error) {
	switch status {
	case "", models.SplitPending, models.SplitAccepted, models.SplitDenied:
	default:
		return nil, domainerrors.Validationf("invalid split status: %q", status)
	}
	return resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) ([]models.SplitRequest, error) {
		return w.store.ListSplitRequests(ctx, callerID, status)
	})
}

// authorize loads a request and checks that callerID may resolve it.
func (w *Workflow) authorize(ctx context.Context, requestID, callerID string) (*models.SplitRequest, error) {
	req, err := resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) (*models.SplitRequest, error) {
		return w.store.GetSplitRequest(ctx, requestID)
	})
	if err != nil {
		return nil, err
	}
	if req.OriginalClaimerID != callerID {
		return nil, domainerrors.ErrNotAuthorized
	}
	if req.Status.Terminal() {
		return nil, domainerrors.ErrAlreadyResolved
	}
	return req, nil
}

// resolved notifies the requester of the outcome.
func (w *Workflow) resolved(ctx context.Context, req *models.SplitRequest, kind models.ActivityKind, attrs map[string]any) {
	w.deps.Log().Info("Split request resolved", "request_id", req.ID, "outcome", string(kind))
	w.deps.Publish(changefeed.Change{
		Kind: changefeed.KindSplitRequest, ID: req.ID, Op: changefeed.OpUpdated, ItemID: req.ItemID,
	})

	item, err := resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) (*models.Item, error) {
		return w.store.GetItem(ctx, req.ItemID)
	})
	if err != nil {
		w.deps.Log().Error("Failed to load item for split activity", "item_id", req.ItemID, "error", err)
		return
	}

	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs["request_id"] = req.ID
	w.deps.Emit(ctx, models.Activity{
		Kind:         kind,
		EventID:      item.EventID,
		ActorID:      req.OriginalClaimerID,
		TargetUserID: req.RequesterID,
		ListID:       item.ListID,
		ItemID:       item.ID,
		Attributes:   attrs,
	})
}

func (w *Workflow) requireMember(ctx context.Context, eventID, userID string) error {
	_, err := resilience.Call(ctx, w.deps.Guard, func(ctx context.Context) (*models.Member, error) {
		return w.store.GetMember(ctx, eventID, userID)
	})
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return domainerrors.ErrNotAMember
	}
	return err
}
