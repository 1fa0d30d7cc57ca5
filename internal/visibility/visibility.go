// Package visibility decides what a viewer may observe about claims on a list.
//
// Everything here is a pure function of its inputs. Callers consult it before
// rendering claim information; it never touches storage.
package visibility

import (
	"github.com/mmynk/giftwiser/internal/models"
)

// Level is how much claim information a viewer may see on one item.
type Level string

const (
	// Hidden conceals whether the item is claimed at all.
	Hidden Level = "hidden"
	// ClaimerIdentityHidden reveals that the item is claimed but not by whom.
	ClaimerIdentityHidden Level = "claimer_identity_hidden"
	// FullyVisible reveals the claim and the claimers.
	FullyVisible Level = "fully_visible"
)

// ClaimInfo returns the visibility level of item's claims for a viewer.
//
//	collaborative mode (both assignment layers on)     -> FullyVisible
//	viewer is a recipient of the list                  -> Hidden
//	item assignment on, viewer not a claimer, no admin -> ClaimerIdentityHidden
//	otherwise                                          -> FullyVisible
//
// In collaborative mode the receiver-assignment layer already provides anonymity, so
// claims are shown to everyone, list recipients included.
func ClaimInfo(role models.Role, viewerID string, item *models.Item, list *models.List) Level {
	if list.CollaborativeMode() {
		return FullyVisible
	}
	if list.IsRecipient(viewerID) {
		return Hidden
	}
	if list.RandomAssignmentEnabled && role != models.RoleAdmin && !item.ClaimedBy(viewerID) {
		return ClaimerIdentityHidden
	}
	return FullyVisible
}

// CountVisible reports whether a viewer may learn how many items of list are claimed.
// Recipients of the list never may, nor may members outside a selected-scope list.
func CountVisible(viewerID string, list *models.List) bool {
	if list.IsRecipient(viewerID) {
		return false
	}
	return list.VisibleTo(viewerID)
}

// ItemView is the redacted claim state of one item.
type ItemView struct {
	ItemID string
	Level  Level

	// Claimed is false when Level is Hidden, whatever the real state.
	Claimed bool

	// ClaimerIDs is set only when Level is FullyVisible.
	ClaimerIDs []string
}

// Redact applies level to item.
func Redact(level Level, item *models.Item) ItemView {
	view := ItemView{ItemID: item.ID, Level: level}
	switch level {
	case FullyVisible:
		view.Claimed = item.Claimed()
		view.ClaimerIDs = append([]string(nil), item.ClaimerIDs...)
	case ClaimerIdentityHidden:
		view.Claimed = item.Claimed()
	}
	return view
}
