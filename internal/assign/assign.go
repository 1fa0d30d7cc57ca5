// Package assign implements random item (giver) assignment and anonymous receiver
// assignment for a list.
//
// Both operations are idempotent: items that already carry an assignment are never
// reconsidered. Every write is a conditional single-row update, so two concurrent
// runs cannot assign the same item twice.
package assign

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/engine"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/resilience"
	"github.com/mmynk/giftwiser/internal/storage"
)

// Store is the storage surface the engine needs.
type Store interface {
	storage.MembershipReader
	storage.CatalogReader
	storage.AssignmentStore
}

// ItemResult is the outcome of a giver assignment run.
type ItemResult struct {
	AssignmentsMade int
	MemberCount     int
}

// ReceiverResult is the outcome of a receiver assignment run.
type ReceiverResult struct {
	AssignmentsMade int

	// Skipped counts unassigned items for which every pool member was a claimer.
	Skipped int
}

// CombinedResult reports both halves of a combined run. Receivers is nil if the
// receiver run failed or was not reached.
type CombinedResult struct {
	Items     *ItemResult
	Receivers *ReceiverResult
}

// Engine runs assignment operations.
type Engine struct {
	store Store
	deps  engine.Deps
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an engine. A nil rng is seeded from the clock.
func New(store Store, deps engine.Deps, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Engine{store: store, deps: deps, now: time.Now, rng: rng}
}

// AssignItemsRandomly assigns unassigned, unclaimed items of listID to eligible
// givers: event members other than the list's recipients.
func (e *Engine) AssignItemsRandomly(ctx context.Context, listID, callerID string) (res *ItemResult, err error) {
	defer func() { e.deps.Observe("assign_items", err) }()

	list, err := e.authorizedList(ctx, listID, callerID)
	if err != nil {
		return nil, err
	}
	if !list.RandomAssignmentEnabled {
		return nil, domainerrors.Validationf("random item assignment is not enabled for list %s", listID)
	}

	members, err := e.members(ctx, list.EventID)
	if err != nil {
		return nil, err
	}
	pool := Pool(members, list.RecipientIDs)
	if len(pool) == 0 {
		return nil, domainerrors.ErrNoAvailableMembers
	}

	items, err := e.items(ctx, listID)
	if err != nil {
		return nil, err
	}

	load := make(map[string]int, len(pool))
	var candidates []string
	for _, item := range items {
		if item.AssignedGiverID != "" {
			load[item.AssignedGiverID]++
			continue
		}
		if !item.Claimed() {
			candidates = append(candidates, item.ID)
		}
	}

	var plan []Pair
	e.mu.Lock()
	switch list.RandomAssignmentMode {
	case models.ModeDistributeAll:
		plan = PlanDistributeAll(e.rng, candidates, pool, load)
	default:
		var free []string
		for _, id := range pool {
			if load[id] == 0 {
				free = append(free, id)
			}
		}
		plan = PlanOnePerMember(e.rng, candidates, free)
	}
	e.mu.Unlock()

	made := 0
	for _, p := range plan {
		ok, err := resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) (bool, error) {
			return e.store.AssignGiver(ctx, p.ItemID, p.UserID)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		made++
		e.deps.Publish(changefeed.Change{
			Kind: changefeed.KindItem, ID: p.ItemID, Op: changefeed.OpUpdated,
			ListID: listID, ItemID: p.ItemID,
		})
	}

	res = &ItemResult{AssignmentsMade: made, MemberCount: len(pool)}
	if err := e.finish(ctx, list, callerID, models.ActivityItemsAssigned, made, map[string]any{
		"assignments_made": made,
		"member_count":     len(pool),
		"mode":             string(list.RandomAssignmentMode),
	}); err != nil {
		return nil, err
	}
	e.deps.Metrics.AddAssignments("giver", made)

	e.deps.Log().Info("Items assigned",
		"list_id", listID,
		"mode", string(list.RandomAssignmentMode),
		"assignments_made", made,
		"member_count", len(pool))
	return res, nil
}

// ExecuteRandomReceiverAssignment assigns an anonymous recipient to every item of
// listID that has none. An item's own claimers are never chosen as its recipient.
func (e *Engine) ExecuteRandomReceiverAssignment(ctx context.Context, listID, callerID string) (res *ReceiverResult, err error) {
	defer func() { e.deps.Observe("assign_receivers", err) }()

	list, err := e.authorizedList(ctx, listID, callerID)
	if err != nil {
		return nil, err
	}
	if !list.RandomReceiverAssignmentEnabled {
		return nil, domainerrors.Validationf("random receiver assignment is not enabled for list %s", listID)
	}

	members, err := e.members(ctx, list.EventID)
	if err != nil {
		return nil, err
	}
	excluded, err := resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) ([]string, error) {
		return e.store.ListAssignmentExclusions(ctx, listID)
	})
	if err != nil {
		return nil, err
	}
	pool := Pool(members, excluded)
	if len(pool) < 2 {
		return nil, domainerrors.ErrNeedAtLeastTwoMembers
	}

	items, err := e.items(ctx, listID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domainerrors.ErrNoItemsInList
	}

	res = &ReceiverResult{}
	for _, item := range items {
		if item.AssignedRecipientID != "" {
			continue
		}

		e.mu.Lock()
		recipient, ok := PickRecipient(e.rng, pool, item.Purchasers())
		e.mu.Unlock()
		if !ok {
			res.Skipped++
			continue
		}

		// The store re-checks claimers and the giver at write time.
		assigned, err := resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) (bool, error) {
			return e.store.AssignRecipient(ctx, item.ID, recipient)
		})
		if err != nil {
			return nil, err
		}
		if !assigned {
			res.Skipped++
			continue
		}
		res.AssignmentsMade++
		e.deps.Publish(changefeed.Change{
			Kind: changefeed.KindItem, ID: item.ID, Op: changefeed.OpUpdated,
			ListID: listID, ItemID: item.ID,
		})
	}

	if err := e.finish(ctx, list, callerID, models.ActivityReceiversAssigned, res.AssignmentsMade, map[string]any{
		"assignments_made": res.AssignmentsMade,
		"skipped":          res.Skipped,
	}); err != nil {
		return nil, err
	}
	e.deps.Metrics.AddAssignments("receiver", res.AssignmentsMade)

	e.deps.Log().Info("Receivers assigned",
		"list_id", listID,
		"assignments_made", res.AssignmentsMade,
		"skipped", res.Skipped)
	return res, nil
}

// RunCombined runs giver assignment then receiver assignment. A failure of the
// second step does not undo the first; the partial result is returned with the error.
func (e *Engine) RunCombined(ctx context.Context, listID, callerID string) (*CombinedResult, error) {
	items, err := e.AssignItemsRandomly(ctx, listID, callerID)
	if err != nil {
		return &CombinedResult{}, err
	}

	out := &CombinedResult{Items: items}
	receivers, err := e.ExecuteRandomReceiverAssignment(ctx, listID, callerID)
	if err != nil {
		e.deps.Log().Warn("Combined assignment partially applied",
			"list_id", listID,
			"item_assignments", items.AssignmentsMade,
			"error", err)
		return out, err
	}
	out.Receivers = receivers
	return out, nil
}

// finish stamps the list and posts activity when a run assigned anything.
func (e *Engine) finish(ctx context.Context, list *models.List, callerID string, kind models.ActivityKind, made int, attrs map[string]any) error {
	if made == 0 {
		return nil
	}
	if err := e.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return e.store.MarkAssignmentExecuted(ctx, list.ID, e.now().Unix())
	}); err != nil {
		return err
	}

	e.deps.Emit(ctx, models.Activity{
		Kind:       kind,
		EventID:    list.EventID,
		ActorID:    callerID,
		ListID:     list.ID,
		Attributes: attrs,
	})
	e.deps.Publish(changefeed.Change{
		Kind: changefeed.KindList, ID: list.ID, Op: changefeed.OpUpdated, ListID: list.ID,
	})
	return nil
}

// authorizedList loads listID and checks that callerID owns it or administers its event.
func (e *Engine) authorizedList(ctx context.Context, listID, callerID string) (*models.List, error) {
	list, err := resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) (*models.List, error) {
		return e.store.GetList(ctx, listID)
	})
	if err != nil {
		return nil, err
	}
	if list.OwnerID == callerID {
		return list, nil
	}

	member, err := resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) (*models.Member, error) {
		return e.store.GetMember(ctx, list.EventID, callerID)
	})
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.ErrNotAuthorized
	}
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, domainerrors.ErrNotAuthorized
	}
	return list, nil
}

func (e *Engine) members(ctx context.Context, eventID string) ([]models.Member, error) {
	return resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) ([]models.Member, error) {
		return e.store.ListMembers(ctx, eventID)
	})
}

func (e *Engine) items(ctx context.Context, listID string) ([]models.Item, error) {
	return resilience.Call(ctx, e.deps.Guard, func(ctx context.Context) ([]models.Item, error) {
		return e.store.ListItems(ctx, listID)
	})
}
