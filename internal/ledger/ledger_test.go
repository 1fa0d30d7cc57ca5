package ledger

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/engine"
	"github.com/mmynk/giftwiser/internal/metrics"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/storage/sqldb"
	"github.com/mmynk/giftwiser/internal/visibility"
)

type recordingSink struct {
	mu    sync.Mutex
	posts []models.Activity
}

func (s *recordingSink) Post(_ context.Context, a models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, a)
	return nil
}

func (s *recordingSink) kinds() []models.ActivityKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ActivityKind, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Kind
	}
	return out
}

// testEnv is an event with Alice(admin), Bob(giver), Dave(giver) and
// Carol(recipient of list L). Eve is not a member.
type testEnv struct {
	store  *sqldb.Store
	ledger *Ledger
	sink   *recordingSink
	feed   *changefeed.Hub
	event  *models.Event
	list   *models.List
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqldb.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	event := &models.Event{Name: "Family Christmas", CreatedBy: "alice"}
	require.NoError(t, store.CreateEvent(ctx, event))
	for user, role := range map[string]models.Role{
		"alice": models.RoleAdmin,
		"bob":   models.RoleGiver,
		"dave":  models.RoleGiver,
		"carol": models.RoleRecipient,
	} {
		require.NoError(t, store.AddMember(ctx, &models.Member{EventID: event.ID, UserID: user, Role: role}))
	}

	list := &models.List{EventID: event.ID, OwnerID: "alice", Name: "Carol", RecipientIDs: []string{"carol"}}
	require.NoError(t, store.CreateList(ctx, list))

	sink := &recordingSink{}
	feed := changefeed.NewHub(nil)
	return &testEnv{
		store:  store,
		ledger: New(store, engine.Deps{Sink: sink, Feed: feed}),
		sink:   sink,
		feed:   feed,
		event:  event,
		list:   list,
	}
}

func (e *testEnv) addItem(t *testing.T, desc string) *models.Item {
	t.Helper()
	item := &models.Item{ListID: e.list.ID, Description: desc}
	require.NoError(t, e.store.CreateItem(context.Background(), item))
	return item
}

func TestClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("success emits activity and change", func(t *testing.T) {
		item := env.addItem(t, "Scarf")

		var changes []changefeed.Change
		unsubscribe := env.feed.Subscribe([]changefeed.EntityKind{changefeed.KindClaim}, func(c changefeed.Change) {
			changes = append(changes, c)
		})
		defer unsubscribe()

		claim, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", claim.ClaimerID)
		assert.Contains(t, env.sink.kinds(), models.ActivityItemClaimed)
		require.Len(t, changes, 1)
		assert.Equal(t, claim.ID, changes[0].ID)
		assert.Equal(t, changefeed.OpCreated, changes[0].Op)
	})

	t.Run("same user is idempotent", func(t *testing.T) {
		item := env.addItem(t, "Mug")
		first, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		second, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("other user conflicts", func(t *testing.T) {
		item := env.addItem(t, "Lamp")
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		_, err = env.ledger.Claim(ctx, item.ID, "dave")
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)
	})

	t.Run("non-member rejected", func(t *testing.T) {
		item := env.addItem(t, "Book")
		_, err := env.ledger.Claim(ctx, item.ID, "eve")
		assert.ErrorIs(t, err, domainerrors.ErrNotAMember)
	})

	t.Run("recipient always rejected", func(t *testing.T) {
		unclaimed := env.addItem(t, "Hat")
		_, err := env.ledger.Claim(ctx, unclaimed.ID, "carol")
		assert.ErrorIs(t, err, domainerrors.ErrRecipientCannotClaim)

		claimed := env.addItem(t, "Gloves")
		_, err = env.ledger.Claim(ctx, claimed.ID, "bob")
		require.NoError(t, err)
		_, err = env.ledger.Claim(ctx, claimed.ID, "carol")
		assert.ErrorIs(t, err, domainerrors.ErrRecipientCannotClaim)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := env.ledger.Claim(ctx, "missing", "bob")
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		item := env.addItem(t, "Bike")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, user := range []string{"bob", "dave"} {
			wg.Add(1)
			go func(i int, user string) {
				defer wg.Done()
				_, errs[i] = env.ledger.Claim(ctx, item.ID, user)
			}(i, user)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)
			}
		}
		assert.Equal(t, 1, succeeded)

		got, err := env.store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Len(t, got.ClaimerIDs, 1)
	})
}

func TestUnclaimAndPurchased(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.addItem(t, "Puzzle")

	claim, err := env.ledger.Claim(ctx, item.ID, "bob")
	require.NoError(t, err)

	t.Run("only the claimer may mark purchased", func(t *testing.T) {
		_, err := env.ledger.SetPurchased(ctx, claim.ID, "dave", true)
		assert.ErrorIs(t, err, domainerrors.ErrNotClaimedByYou)

		_, err = env.ledger.SetPurchased(ctx, "missing", "bob", true)
		assert.ErrorIs(t, err, domainerrors.ErrNotClaimedByYou)

		updated, err := env.ledger.SetPurchased(ctx, claim.ID, "bob", true)
		require.NoError(t, err)
		assert.True(t, updated.Purchased)
		assert.Contains(t, env.sink.kinds(), models.ActivityItemPurchased)
	})

	t.Run("only the claimer may unclaim", func(t *testing.T) {
		assert.ErrorIs(t, env.ledger.Unclaim(ctx, item.ID, "dave"), domainerrors.ErrNotClaimedByYou)
		require.NoError(t, env.ledger.Unclaim(ctx, item.ID, "bob"))
		assert.ErrorIs(t, env.ledger.Unclaim(ctx, item.ID, "bob"), domainerrors.ErrNotClaimedByYou)

		got, err := env.store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.False(t, got.Claimed())
	})
}

func TestClaimCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, desc := range []string{"A", "B"} {
		item := env.addItem(t, desc)
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
	}
	env.addItem(t, "C")

	t.Run("giver sees the count", func(t *testing.T) {
		counts, err := env.ledger.ClaimCounts(ctx, "dave", []string{env.list.ID})
		require.NoError(t, err)
		require.Len(t, counts, 1)
		assert.Equal(t, 2, counts[0].Count)
		assert.False(t, counts[0].Withheld)
	})

	t.Run("recipient gets it withheld", func(t *testing.T) {
		counts, err := env.ledger.ClaimCounts(ctx, "carol", []string{env.list.ID})
		require.NoError(t, err)
		require.Len(t, counts, 1)
		assert.Equal(t, 0, counts[0].Count)
		assert.True(t, counts[0].Withheld)
	})

	t.Run("non-member gets it withheld", func(t *testing.T) {
		counts, err := env.ledger.ClaimCounts(ctx, "eve", []string{env.list.ID})
		require.NoError(t, err)
		assert.True(t, counts[0].Withheld)
	})
}

func TestItemClaims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.addItem(t, "Drone")
	_, err := env.ledger.Claim(ctx, item.ID, "bob")
	require.NoError(t, err)

	view, err := env.ledger.ItemClaims(ctx, "dave", item.ID)
	require.NoError(t, err)
	assert.Equal(t, visibility.FullyVisible, view.Level)
	require.Len(t, view.Claims, 1)
	assert.Equal(t, "bob", view.Claims[0].ClaimerID)

	view, err = env.ledger.ItemClaims(ctx, "carol", item.ID)
	require.NoError(t, err)
	assert.Equal(t, visibility.Hidden, view.Level)
	assert.False(t, view.Claimed)
	assert.Empty(t, view.Claims)

	require.NoError(t, env.store.UpdateAssignmentConfig(ctx, env.list.ID, models.AssignmentConfig{
		RandomAssignmentEnabled: true,
		RandomAssignmentMode:    models.ModeOnePerMember,
	}))
	view, err = env.ledger.ItemClaims(ctx, "dave", item.ID)
	require.NoError(t, err)
	assert.Equal(t, visibility.ClaimerIdentityHidden, view.Level)
	assert.True(t, view.Claimed)
	assert.Empty(t, view.ClaimerIDs)

	_, err = env.ledger.ItemClaims(ctx, "eve", item.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotAMember)
}

func TestReadsRecordOutcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	env.ledger = New(env.store, engine.Deps{Metrics: metrics.New(reg)})
	item := env.addItem(t, "Kite")

	_, err := env.ledger.ClaimCounts(ctx, "dave", []string{env.list.ID})
	require.NoError(t, err)
	_, err = env.ledger.ClaimCounts(ctx, "dave", []string{"missing"})
	require.Error(t, err)
	_, err = env.ledger.ItemClaims(ctx, "dave", item.ID)
	require.NoError(t, err)
	_, err = env.ledger.ItemClaims(ctx, "eve", item.ID)
	require.Error(t, err)

	expected := `
# HELP giftwiser_operations_total Engine operations by name and result code.
# TYPE giftwiser_operations_total counter
giftwiser_operations_total{code="NOT_A_MEMBER",operation="item_claims"} 1
giftwiser_operations_total{code="NOT_FOUND",operation="claim_counts"} 1
giftwiser_operations_total{code="OK",operation="claim_counts"} 1
giftwiser_operations_total{code="OK",operation="item_claims"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "giftwiser_operations_total"))
}
