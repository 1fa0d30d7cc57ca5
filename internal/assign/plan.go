package assign

import (
	"math/rand/v2"
	"sort"

	"github.com/mmynk/giftwiser/internal/models"
)

// Pair is one planned assignment of a user to an item.
type Pair struct {
	ItemID string
	UserID string
}

// Pool returns the user IDs of members not listed in excluded, in member order.
func Pool(members []models.Member, excluded []string) []string {
	skip := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	pool := make([]string, 0, len(members))
	for _, m := range members {
		if !skip[m.UserID] {
			pool = append(pool, m.UserID)
		}
	}
	return pool
}

// PlanOnePerMember pairs shuffled givers with shuffled items 1:1. Excess items or
// givers are left out.
func PlanOnePerMember(rng *rand.Rand, itemIDs, givers []string) []Pair {
	items := shuffled(rng, itemIDs)
	people := shuffled(rng, givers)

	n := min(len(items), len(people))
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{ItemID: items[i], UserID: people[i]}
	}
	return pairs
}

// PlanDistributeAll assigns every item, round-robin over the givers. Givers with the
// lowest existing load come first, so repeated runs keep every giver within one item
// of the others.
func PlanDistributeAll(rng *rand.Rand, itemIDs, givers []string, load map[string]int) []Pair {
	if len(givers) == 0 {
		return nil
	}

	items := shuffled(rng, itemIDs)
	people := shuffled(rng, givers)
	sort.SliceStable(people, func(i, j int) bool {
		return load[people[i]] < load[people[j]]
	})

	pairs := make([]Pair, len(items))
	for i, itemID := range items {
		pairs[i] = Pair{ItemID: itemID, UserID: people[i%len(people)]}
	}
	return pairs
}

// PickRecipient picks a uniformly random member of pool not listed in exclude.
// It reports false if every member is excluded.
func PickRecipient(rng *rand.Rand, pool, exclude []string) (string, bool) {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	candidates := make([]string, 0, len(pool))
	for _, id := range pool {
		if !skip[id] {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rng.IntN(len(candidates))], true
}

func shuffled(rng *rand.Rand, in []string) []string {
	out := append([]string(nil), in...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
