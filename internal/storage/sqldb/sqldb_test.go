package sqldb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fixture is an event with a list owned by "owner" whose recipient is "rcpt".
type fixture struct {
	event *models.Event
	list  *models.List
}

func seed(t *testing.T, store *Store, members ...string) fixture {
	t.Helper()
	ctx := context.Background()

	event := &models.Event{Name: "Holidays", CreatedBy: "owner"}
	require.NoError(t, store.CreateEvent(ctx, event))

	for _, userID := range append([]string{"owner", "rcpt"}, members...) {
		require.NoError(t, store.AddMember(ctx, &models.Member{
			EventID: event.ID, UserID: userID, Role: models.RoleGiver,
		}))
	}

	list := &models.List{
		EventID:      event.ID,
		OwnerID:      "owner",
		Name:         "For rcpt",
		RecipientIDs: []string{"rcpt"},
	}
	require.NoError(t, store.CreateList(ctx, list))
	return fixture{event: event, list: list}
}

func addItem(t *testing.T, store *Store, listID, desc string) *models.Item {
	t.Helper()
	item := &models.Item{ListID: listID, Description: desc}
	require.NoError(t, store.CreateItem(context.Background(), item))
	return item
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		d     dialect
		query string
		want  string
	}{
		{"sqlite untouched", dialectSQLite, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = ? AND b = ?"},
		{"postgres numbered", dialectPostgres, "SELECT 1 WHERE a = ? AND b = ?", "SELECT 1 WHERE a = $1 AND b = $2"},
		{"postgres no args", dialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.rebind(tt.query))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestMembersAndLists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx := seed(t, store, "alice")

	t.Run("GetMember returns role", func(t *testing.T) {
		m, err := store.GetMember(ctx, fx.event.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, models.RoleGiver, m.Role)
	})

	t.Run("GetMember unknown user is not found", func(t *testing.T) {
		_, err := store.GetMember(ctx, fx.event.ID, "stranger")
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("ListMembers returns everyone", func(t *testing.T) {
		members, err := store.ListMembers(ctx, fx.event.ID)
		require.NoError(t, err)
		assert.Len(t, members, 3)
	})

	t.Run("GetList populates recipients and defaults", func(t *testing.T) {
		list, err := store.GetList(ctx, fx.list.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"rcpt"}, list.RecipientIDs)
		assert.Equal(t, models.ScopeEvent, list.Scope)
		assert.Equal(t, models.ModeOnePerMember, list.RandomAssignmentMode)
	})

	t.Run("UpdateAssignmentConfig persists flags", func(t *testing.T) {
		require.NoError(t, store.UpdateAssignmentConfig(ctx, fx.list.ID, models.AssignmentConfig{
			RandomAssignmentEnabled:         true,
			RandomAssignmentMode:            models.ModeDistributeAll,
			RandomReceiverAssignmentEnabled: true,
		}))
		list, err := store.GetList(ctx, fx.list.ID)
		require.NoError(t, err)
		assert.True(t, list.CollaborativeMode())
		assert.Equal(t, models.ModeDistributeAll, list.RandomAssignmentMode)
	})

	t.Run("assignment exclusions", func(t *testing.T) {
		require.NoError(t, store.AddAssignmentExclusion(ctx, fx.list.ID, "alice"))
		require.NoError(t, store.AddAssignmentExclusion(ctx, fx.list.ID, "alice"))
		excluded, err := store.ListAssignmentExclusions(ctx, fx.list.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, excluded)
	})
}

func TestClaims(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx := seed(t, store, "alice", "bob")

	t.Run("CreateClaim is idempotent for the same user", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Scarf")

		first, created, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.SlotPrimary, first.Slot)

		again, created, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("CreateClaim by a second user conflicts", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Mug")
		_, _, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)

		_, _, err = store.CreateClaim(ctx, item.ID, "bob")
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)
	})

	t.Run("concurrent claims produce exactly one winner", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Lamp")

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i, user := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(i int, user string) {
				defer wg.Done()
				_, _, results[i] = store.CreateClaim(ctx, item.ID, user)
			}(i, user)
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)
		}
		assert.Equal(t, 1, wins)

		claims, err := store.ListClaims(ctx, item.ID)
		require.NoError(t, err)
		assert.Len(t, claims, 1)
	})

	t.Run("DeleteClaim without a claim", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Book")
		err := store.DeleteClaim(ctx, item.ID, "alice")
		assert.ErrorIs(t, err, domainerrors.ErrNotClaimedByYou)
	})

	t.Run("SetClaimPurchased only by the claimer", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Socks")
		claim, _, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)

		_, err = store.SetClaimPurchased(ctx, claim.ID, "bob", true)
		assert.ErrorIs(t, err, domainerrors.ErrNotClaimedByYou)

		updated, err := store.SetClaimPurchased(ctx, claim.ID, "alice", true)
		require.NoError(t, err)
		assert.True(t, updated.Purchased)

		_, err = store.SetClaimPurchased(ctx, "missing", "alice", true)
		assert.ErrorIs(t, err, domainerrors.ErrNotClaimedByYou)
	})

	t.Run("CountClaimedItems counts items not claims", func(t *testing.T) {
		other := &models.List{EventID: fx.event.ID, OwnerID: "owner", Name: "Empty"}
		require.NoError(t, store.CreateList(ctx, other))

		counts, err := store.CountClaimedItems(ctx, []string{fx.list.ID, other.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, counts[fx.list.ID])
		_, ok := counts[other.ID]
		assert.False(t, ok)
	})
}

func TestSplitRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx := seed(t, store, "alice", "bob", "carol")

	t.Run("accept inserts shared claim once", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Bike")
		_, _, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)

		req := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
		require.NoError(t, store.CreateSplitRequest(ctx, req))
		assert.Equal(t, models.SplitPending, req.Status)

		dup := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
		assert.ErrorIs(t, store.CreateSplitRequest(ctx, dup), domainerrors.ErrDuplicatePendingRequest)

		claim, err := store.AcceptSplitRequest(ctx, req.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, "bob", claim.ClaimerID)
		assert.Equal(t, models.SlotShared, claim.Slot)

		_, err = store.AcceptSplitRequest(ctx, req.ID, 101)
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)

		got, err := store.GetSplitRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SplitAccepted, got.Status)
		assert.Equal(t, int64(100), got.ResolvedAt)

		fetched, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, fetched.ClaimerIDs)
	})

	t.Run("second accepted split conflicts", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Kite")
		_, _, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)

		bob := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
		carol := &models.SplitRequest{ItemID: item.ID, RequesterID: "carol", OriginalClaimerID: "alice"}
		require.NoError(t, store.CreateSplitRequest(ctx, bob))
		require.NoError(t, store.CreateSplitRequest(ctx, carol))

		_, err = store.AcceptSplitRequest(ctx, bob.ID, 100)
		require.NoError(t, err)
		_, err = store.AcceptSplitRequest(ctx, carol.ID, 101)
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)

		got, err := store.GetSplitRequest(ctx, carol.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SplitPending, got.Status, "failed accept must roll back")
	})

	t.Run("deny then re-request", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Drone")
		_, _, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)

		req := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
		require.NoError(t, store.CreateSplitRequest(ctx, req))
		require.NoError(t, store.DenySplitRequest(ctx, req.ID, 100))
		assert.ErrorIs(t, store.DenySplitRequest(ctx, req.ID, 101), domainerrors.ErrAlreadyResolved)

		again := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
		assert.NoError(t, store.CreateSplitRequest(ctx, again))
	})

	t.Run("unclaiming primary promotes share and denies pending", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Tent")
		_, _, err := store.CreateClaim(ctx, item.ID, "alice")
		require.NoError(t, err)

		share := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
		require.NoError(t, store.CreateSplitRequest(ctx, share))
		_, err = store.AcceptSplitRequest(ctx, share.ID, 100)
		require.NoError(t, err)

		pending := &models.SplitRequest{ItemID: item.ID, RequesterID: "carol", OriginalClaimerID: "alice"}
		require.NoError(t, store.CreateSplitRequest(ctx, pending))

		require.NoError(t, store.DeleteClaim(ctx, item.ID, "alice"))

		claims, err := store.ListClaims(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, claims, 1)
		assert.Equal(t, "bob", claims[0].ClaimerID)
		assert.Equal(t, models.SlotPrimary, claims[0].Slot)

		got, err := store.GetSplitRequest(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SplitDenied, got.Status)
	})

	t.Run("ListSplitRequests filters by status", func(t *testing.T) {
		pending, err := store.ListSplitRequests(ctx, "alice", models.SplitPending)
		require.NoError(t, err)
		for _, r := range pending {
			assert.Equal(t, models.SplitPending, r.Status)
			assert.Equal(t, "alice", r.OriginalClaimerID)
		}

		all, err := store.ListSplitRequests(ctx, "alice", "")
		require.NoError(t, err)
		assert.Greater(t, len(all), len(pending))
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		_, err := store.AcceptSplitRequest(ctx, "missing", 1)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestAssignments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx := seed(t, store, "alice", "bob")

	t.Run("AssignGiver is a single conditional write", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Puzzle")

		ok, err := store.AssignGiver(ctx, item.ID, "alice")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.AssignGiver(ctx, item.ID, "bob")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.AssignedGiverID)
	})

	t.Run("AssignGiver skips claimed items", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Hat")
		_, _, err := store.CreateClaim(ctx, item.ID, "bob")
		require.NoError(t, err)

		ok, err := store.AssignGiver(ctx, item.ID, "alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("AssignRecipient rejects the claimer", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Cards")
		_, _, err := store.CreateClaim(ctx, item.ID, "bob")
		require.NoError(t, err)

		ok, err := store.AssignRecipient(ctx, item.ID, "bob")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.AssignRecipient(ctx, item.ID, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AssignRecipient rejects the assigned giver", func(t *testing.T) {
		item := addItem(t, store, fx.list.ID, "Scarf")
		ok, err := store.AssignGiver(ctx, item.ID, "alice")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.AssignRecipient(ctx, item.ID, "alice")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.AssignRecipient(ctx, item.ID, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("MarkAssignmentExecuted", func(t *testing.T) {
		require.NoError(t, store.MarkAssignmentExecuted(ctx, fx.list.ID, 1234))
		list, err := store.GetList(ctx, fx.list.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1234), list.RandomAssignmentExecutedAt)

		err = store.MarkAssignmentExecuted(ctx, "missing", 1)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestCascadeDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx := seed(t, store, "alice", "bob")

	item := addItem(t, store, fx.list.ID, "Guitar")
	claim, _, err := store.CreateClaim(ctx, item.ID, "alice")
	require.NoError(t, err)
	req := &models.SplitRequest{ItemID: item.ID, RequesterID: "bob", OriginalClaimerID: "alice"}
	require.NoError(t, store.CreateSplitRequest(ctx, req))

	require.NoError(t, store.DeleteList(ctx, fx.list.ID))

	_, err = store.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = store.GetClaim(ctx, claim.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = store.GetSplitRequest(ctx, req.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestActivityOutbox(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx := seed(t, store)

	for i, kind := range []models.ActivityKind{models.ActivityItemClaimed, models.ActivitySplitRequested} {
		require.NoError(t, store.AppendActivity(ctx, &models.ActivityRecord{
			Kind:      kind,
			EventID:   fx.event.ID,
			ActorID:   "owner",
			Payload:   []byte{byte(i)},
			CreatedAt: int64(10 + i),
		}))
	}

	recs, err := store.ListActivity(ctx, fx.event.ID, 11, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.ActivitySplitRequested, recs[0].Kind)
	assert.Equal(t, []byte{1}, recs[0].Payload)
}
