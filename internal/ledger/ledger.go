// Package ledger is the authoritative record of which members have reserved which
// items.
//
// The ledger enforces membership and self-gift rules before writing. Uniqueness of
// claims is enforced by the store, so several ledger instances may run side by side.
package ledger

import (
	"context"

	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/engine"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/resilience"
	"github.com/mmynk/giftwiser/internal/storage"
	"github.com/mmynk/giftwiser/internal/visibility"
)

// Store is the storage surface the ledger needs.
type Store interface {
	storage.MembershipReader
	storage.CatalogReader
	storage.ClaimStore
}

// Ledger implements claim operations.
type Ledger struct {
	store Store
	deps  engine.Deps
}

// New creates a ledger over store.
func New(store Store, deps engine.Deps) *Ledger {
	return &Ledger{store: store, deps: deps}
}

// Claim reserves itemID for userID. Claiming an item the caller already holds
// succeeds without change.
func (l *Ledger) Claim(ctx context.Context, itemID, userID string) (claim *models.Claim, err error) {
	defer func() { l.deps.Observe("claim", err) }()

	item, list, err := l.itemAndList(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := l.member(ctx, item.EventID, userID); err != nil {
		return nil, err
	}
	if list.IsRecipient(userID) {
		return nil, domainerrors.ErrRecipientCannotClaim
	}

	var created bool
	err = l.deps.Guard.Do(ctx, func(ctx context.Context) error {
		var err error
		claim, created, err = l.store.CreateClaim(ctx, itemID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return claim, nil
	}

	l.deps.Log().Info("Item claimed", "item_id", itemID, "user_id", userID)
	l.deps.Emit(ctx, models.Activity{
		Kind:    models.ActivityItemClaimed,
		EventID: item.EventID,
		ActorID: userID,
		ListID:  item.ListID,
		ItemID:  itemID,
	})
	l.deps.Publish(changefeed.Change{
		Kind: changefeed.KindClaim, ID: claim.ID, Op: changefeed.OpCreated,
		ListID: item.ListID, ItemID: itemID,
	})
	return claim, nil
}

// Unclaim removes the caller's own claim on itemID.
func (l *Ledger) Unclaim(ctx context.Context, itemID, userID string) (err error) {
	defer func() { l.deps.Observe("unclaim", err) }()

	item, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.Item, error) {
		return l.store.GetItem(ctx, itemID)
	})
	if err != nil {
		return err
	}
	if !item.ClaimedBy(userID) {
		return domainerrors.ErrNotClaimedByYou
	}

	if err := l.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return l.store.DeleteClaim(ctx, itemID, userID)
	}); err != nil {
		return err
	}

	l.deps.Log().Info("Item unclaimed", "item_id", itemID, "user_id", userID)
	l.deps.Emit(ctx, models.Activity{
		Kind:    models.ActivityItemUnclaimed,
		EventID: item.EventID,
		ActorID: userID,
		ListID:  item.ListID,
		ItemID:  itemID,
	})
	l.deps.Publish(changefeed.Change{
		Kind: changefeed.KindItem, ID: itemID, Op: changefeed.OpUpdated,
		ListID: item.ListID, ItemID: itemID,
	})
	return nil
}

// SetPurchased toggles the purchased flag of a claim held by userID.
func (l *Ledger) SetPurchased(ctx context.Context, claimID, userID string, purchased bool) (claim *models.Claim, err error) {
	defer func() { l.deps.Observe("set_purchased", err) }()

	claim, err = resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.Claim, error) {
		return l.store.SetClaimPurchased(ctx, claimID, userID, purchased)
	})
	if err != nil {
		return nil, err
	}

	item, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.Item, error) {
		return l.store.GetItem(ctx, claim.ItemID)
	})
	if err != nil {
		return nil, err
	}

	if purchased {
		l.deps.Emit(ctx, models.Activity{
			Kind:    models.ActivityItemPurchased,
			EventID: item.EventID,
			ActorID: userID,
			ListID:  item.ListID,
			ItemID:  item.ID,
		})
	}
	l.deps.Publish(changefeed.Change{
		Kind: changefeed.KindClaim, ID: claim.ID, Op: changefeed.OpUpdated,
		ListID: item.ListID, ItemID: item.ID,
	})
	return claim, nil
}

// ClaimCounts returns the number of claimed items per list as visible to viewerID,
// in the order of listIDs. Counts the viewer may not learn are withheld.
func (l *Ledger) ClaimCounts(ctx context.Context, viewerID string, listIDs []string) (out []models.ListClaimCount, err error) {
	defer func() { l.deps.Observe("claim_counts", err) }()

	lists := make([]*models.List, 0, len(listIDs))
	membership := make(map[string]bool)
	var visible []string

	for _, id := range listIDs {
		list, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.List, error) {
			return l.store.GetList(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)

		isMember, ok := membership[list.EventID]
		if !ok {
			_, err := l.member(ctx, list.EventID, viewerID)
			switch {
			case err == nil:
				isMember = true
			case domainerrors.Is(err, domainerrors.ErrNotAMember):
				isMember = false
			default:
				return nil, err
			}
			membership[list.EventID] = isMember
		}
		if isMember && visibility.CountVisible(viewerID, list) {
			visible = append(visible, list.ID)
		}
	}

	counts, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (map[string]int, error) {
		return l.store.CountClaimedItems(ctx, visible)
	})
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(visible))
	for _, id := range visible {
		allowed[id] = true
	}

	out = make([]models.ListClaimCount, 0, len(lists))
	for _, list := range lists {
		if !allowed[list.ID] {
			out = append(out, models.ListClaimCount{ListID: list.ID, Withheld: true})
			continue
		}
		out = append(out, models.ListClaimCount{ListID: list.ID, Count: counts[list.ID]})
	}
	return out, nil
}

// ClaimView is an item's claim state filtered for one viewer.
type ClaimView struct {
	visibility.ItemView

	// Claims is populated only when the view is fully visible.
	Claims []models.Claim
}

// ItemClaims returns the claims on itemID as visible to viewerID.
func (l *Ledger) ItemClaims(ctx context.Context, viewerID, itemID string) (view *ClaimView, err error) {
	defer func() { l.deps.Observe("item_claims", err) }()

	item, list, err := l.itemAndList(ctx, itemID)
	if err != nil {
		return nil, err
	}
	member, err := l.member(ctx, item.EventID, viewerID)
	if err != nil {
		return nil, err
	}

	level := visibility.Hidden
	if list.VisibleTo(viewerID) {
		level = visibility.ClaimInfo(member.Role, viewerID, item, list)
	}
	view = &ClaimView{ItemView: visibility.Redact(level, item)}
	if level != visibility.FullyVisible {
		return view, nil
	}

	view.Claims, err = resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) ([]models.Claim, error) {
		return l.store.ListClaims(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (l *Ledger) itemAndList(ctx context.Context, itemID string) (*models.Item, *models.List, error) {
	item, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.Item, error) {
		return l.store.GetItem(ctx, itemID)
	})
	if err != nil {
		return nil, nil, err
	}
	list, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.List, error) {
		return l.store.GetList(ctx, item.ListID)
	})
	if err != nil {
		return nil, nil, err
	}
	return item, list, nil
}

// member returns the membership of userID, mapping a missing row to ErrNotAMember.
func (l *Ledger) member(ctx context.Context, eventID, userID string) (*models.Member, error) {
	m, err := resilience.Call(ctx, l.deps.Guard, func(ctx context.Context) (*models.Member, error) {
		return l.store.GetMember(ctx, eventID, userID)
	})
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.ErrNotAMember
	}
	return m, err
}
