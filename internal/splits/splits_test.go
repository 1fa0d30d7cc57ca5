package splits

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/giftwiser/internal/engine"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/ledger"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/storage/sqldb"
)

type recordingSink struct {
	posts []models.Activity
}

func (s *recordingSink) Post(_ context.Context, a models.Activity) error {
	s.posts = append(s.posts, a)
	return nil
}

type testEnv struct {
	store    *sqldb.Store
	ledger   *ledger.Ledger
	workflow *Workflow
	sink     *recordingSink
	list     *models.List
}

// newTestEnv seeds Alice(admin), Bob(giver), Dave(giver) and Carol, the recipient
// of list L.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqldb.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	event := &models.Event{Name: "E", CreatedBy: "alice"}
	require.NoError(t, store.CreateEvent(ctx, event))
	for user, role := range map[string]models.Role{
		"alice": models.RoleAdmin,
		"bob":   models.RoleGiver,
		"dave":  models.RoleGiver,
		"carol": models.RoleRecipient,
	} {
		require.NoError(t, store.AddMember(ctx, &models.Member{EventID: event.ID, UserID: user, Role: role}))
	}
	list := &models.List{EventID: event.ID, OwnerID: "alice", Name: "L", RecipientIDs: []string{"carol"}}
	require.NoError(t, store.CreateList(ctx, list))

	sink := &recordingSink{}
	deps := engine.Deps{Sink: sink}
	return &testEnv{
		store:    store,
		ledger:   ledger.New(store, deps),
		workflow: New(store, deps),
		sink:     sink,
		list:     list,
	}
}

func (e *testEnv) addItem(t *testing.T, desc string) *models.Item {
	t.Helper()
	item := &models.Item{ListID: e.list.ID, Description: desc}
	require.NoError(t, e.store.CreateItem(context.Background(), item))
	return item
}

func TestScenario_ClaimSplitAndWithheldCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	i1 := env.addItem(t, "I1")
	env.addItem(t, "I2")

	_, err := env.ledger.Claim(ctx, i1.ID, "bob")
	require.NoError(t, err)

	_, err = env.ledger.Claim(ctx, i1.ID, "carol")
	assert.ErrorIs(t, err, domainerrors.ErrRecipientCannotClaim)

	req, err := env.workflow.RequestSplit(ctx, i1.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.SplitPending, req.Status)
	assert.Equal(t, "bob", req.OriginalClaimerID)

	_, err = env.workflow.AcceptSplit(ctx, req.ID, "bob")
	require.NoError(t, err)

	item, err := env.store.GetItem(ctx, i1.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "alice"}, item.ClaimerIDs)

	counts, err := env.ledger.ClaimCounts(ctx, "carol", []string{env.list.ID})
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.True(t, counts[0].Withheld)
	assert.Zero(t, counts[0].Count)
}

func TestRequestSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("unclaimed item", func(t *testing.T) {
		item := env.addItem(t, "Free")
		_, err := env.workflow.RequestSplit(ctx, item.ID, "dave")
		assert.ErrorIs(t, err, domainerrors.ErrItemNotClaimed)
	})

	t.Run("own claim", func(t *testing.T) {
		item := env.addItem(t, "Mine")
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		_, err = env.workflow.RequestSplit(ctx, item.ID, "bob")
		assert.ErrorIs(t, err, domainerrors.ErrCannotSplitOwnClaim)
	})

	t.Run("duplicate pending and notification", func(t *testing.T) {
		item := env.addItem(t, "Dup")
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)

		req, err := env.workflow.RequestSplit(ctx, item.ID, "dave")
		require.NoError(t, err)
		_, err = env.workflow.RequestSplit(ctx, item.ID, "dave")
		assert.ErrorIs(t, err, domainerrors.ErrDuplicatePendingRequest)

		last := env.sink.posts[len(env.sink.posts)-1]
		assert.Equal(t, models.ActivitySplitRequested, last.Kind)
		assert.Equal(t, "bob", last.TargetUserID)
		assert.Equal(t, req.ID, last.Attributes["request_id"])
	})

	t.Run("requester already shares the item", func(t *testing.T) {
		item := env.addItem(t, "Shared")
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		req, err := env.workflow.RequestSplit(ctx, item.ID, "dave")
		require.NoError(t, err)
		_, err = env.workflow.AcceptSplit(ctx, req.ID, "bob")
		require.NoError(t, err)

		_, err = env.workflow.RequestSplit(ctx, item.ID, "dave")
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)
		_, err = env.workflow.RequestSplit(ctx, item.ID, "alice")
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyClaimed)
	})

	t.Run("recipient cannot request", func(t *testing.T) {
		item := env.addItem(t, "Secret")
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		_, err = env.workflow.RequestSplit(ctx, item.ID, "carol")
		assert.ErrorIs(t, err, domainerrors.ErrRecipientCannotClaim)
	})

	t.Run("non-member", func(t *testing.T) {
		item := env.addItem(t, "Outsider")
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		_, err = env.workflow.RequestSplit(ctx, item.ID, "eve")
		assert.ErrorIs(t, err, domainerrors.ErrNotAMember)
	})
}

func TestResolveSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	newRequest := func(t *testing.T, desc string) (*models.Item, *models.SplitRequest) {
		item := env.addItem(t, desc)
		_, err := env.ledger.Claim(ctx, item.ID, "bob")
		require.NoError(t, err)
		req, err := env.workflow.RequestSplit(ctx, item.ID, "dave")
		require.NoError(t, err)
		return item, req
	}

	t.Run("only original claimer may resolve", func(t *testing.T) {
		_, req := newRequest(t, "Auth")
		_, err := env.workflow.AcceptSplit(ctx, req.ID, "dave")
		assert.ErrorIs(t, err, domainerrors.ErrNotAuthorized)
		assert.ErrorIs(t, env.workflow.DenySplit(ctx, req.ID, "alice"), domainerrors.ErrNotAuthorized)
	})

	t.Run("re-accept is already resolved and adds no claim", func(t *testing.T) {
		item, req := newRequest(t, "Twice")
		_, err := env.workflow.AcceptSplit(ctx, req.ID, "bob")
		require.NoError(t, err)

		_, err = env.workflow.AcceptSplit(ctx, req.ID, "bob")
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)

		got, err := env.store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Len(t, got.ClaimerIDs, models.MaxClaimsPerItem)
	})

	t.Run("deny creates no claim", func(t *testing.T) {
		item, req := newRequest(t, "Deny")
		require.NoError(t, env.workflow.DenySplit(ctx, req.ID, "bob"))
		assert.ErrorIs(t, env.workflow.DenySplit(ctx, req.ID, "bob"), domainerrors.ErrAlreadyResolved)
		_, err := env.workflow.AcceptSplit(ctx, req.ID, "bob")
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)

		got, err := env.store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, got.ClaimerIDs)

		last := env.sink.posts[len(env.sink.posts)-1]
		assert.Equal(t, models.ActivitySplitDenied, last.Kind)
		assert.Equal(t, "dave", last.TargetUserID)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := env.workflow.AcceptSplit(ctx, "missing", "bob")
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("list requests for the original claimer", func(t *testing.T) {
		pending, err := env.workflow.ListSplitRequests(ctx, "bob", models.SplitPending)
		require.NoError(t, err)
		for _, r := range pending {
			assert.Equal(t, models.SplitPending, r.Status)
		}
		assert.NotEmpty(t, pending)

		_, err = env.workflow.ListSplitRequests(ctx, "bob", "bogus")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)
	})
}
