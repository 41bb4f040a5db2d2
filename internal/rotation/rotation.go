// Package rotation picks one winner among eligible line items. Every
// strategy first drops inactive items and returns nil on an empty set; the
// caller treats nil as "no eligible item", not as an error.
package rotation

import (
	"math/rand"
	"sort"

	"github.com/openadstack/addecide/internal/models"
)

// Context carries the per-request inputs some strategies need.
type Context struct {
	// AnonID drives ab_test bucketing. When empty, dispatch falls back to
	// weighted random.
	AnonID string
	// LastServedIndex is the previously served slot for sequential
	// rotation. The caller persists it across calls; -1 starts the cycle.
	LastServedIndex int
}

// Rotate dispatches to the strategy's selection function. Unknown strategies
// fall back to weighted random.
func Rotate(items []models.LineItem, strategy string, ctx Context) *models.LineItem {
	switch strategy {
	case models.RotationWeightedRandom:
		return WeightedRandom(items)
	case models.RotationEvenDistribution:
		return EvenDistribution(items)
	case models.RotationPriorityFirst:
		return PriorityFirst(items)
	case models.RotationSequential:
		return Sequential(items, ctx.LastServedIndex)
	case models.RotationABTest:
		if ctx.AnonID == "" {
			return WeightedRandom(items)
		}
		return ABTest(items, ctx.AnonID)
	}
	return WeightedRandom(items)
}

// WeightedRandom selects proportionally to item weight via cumulative-weight
// sampling. A zero weight counts as 1, so items with all-zero weights
// degrade to a uniform pick rather than never serving.
func WeightedRandom(items []models.LineItem) *models.LineItem {
	active := activeOnly(items)
	if len(active) == 0 {
		return nil
	}

	total := 0
	for i := range active {
		total += effectiveWeight(&active[i])
	}

	r := rand.Float64() * float64(total)
	for i := range active {
		r -= float64(effectiveWeight(&active[i]))
		if r <= 0 {
			return &active[i]
		}
	}
	return &active[len(active)-1]
}

func effectiveWeight(li *models.LineItem) int {
	if li.Weight <= 0 {
		return 1
	}
	return li.Weight
}

// EvenDistribution deterministically returns the least-served item,
// tie-breaking on higher priority. Used to equalize delivery across a
// campaign.
func EvenDistribution(items []models.LineItem) *models.LineItem {
	active := activeOnly(items)
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].ServedImpressions != active[j].ServedImpressions {
			return active[i].ServedImpressions < active[j].ServedImpressions
		}
		return active[i].Priority > active[j].Priority
	})
	return &active[0]
}

// PriorityFirst prefers the highest-priority item (weight breaks ties) that
// still has budget under its total impression cap, scanning down the sorted
// list otherwise. When nothing has budget it still returns the top item so
// the caller can count the over-delivery instead of failing silently.
func PriorityFirst(items []models.LineItem) *models.LineItem {
	active := activeOnly(items)
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].Weight > active[j].Weight
	})

	for i := range active {
		if active[i].HasAvailableBudget() {
			return &active[i]
		}
	}
	return &active[0]
}

// Sequential is a stateless round-robin step: it orders items by priority
// then id and returns the slot after lastServedIndex. True rotation depends
// on the caller persisting the index between calls.
func Sequential(items []models.LineItem, lastServedIndex int) *models.LineItem {
	active := activeOnly(items)
	if len(active) == 0 {
		return nil
	}

	sortStable(active)
	next := (lastServedIndex + 1) % len(active)
	if next < 0 {
		next += len(active)
	}
	return &active[next]
}

// ABTest buckets an anon id deterministically over the stably sorted
// candidates: the same id always lands on the same item for the same
// candidate set. Adding or removing items may reassign buckets.
func ABTest(items []models.LineItem, anonID string) *models.LineItem {
	active := activeOnly(items)
	if len(active) == 0 {
		return nil
	}

	sortStable(active)
	bucket := int(Hash(anonID)) % len(active)
	if bucket < 0 {
		bucket = -bucket
	}
	return &active[bucket]
}

// Hash is the 32-bit multiplicative string hash (h = h*31 + c with 32-bit
// wraparound) the legacy bucketing used. Keeping it bit-for-bit means anon
// ids keep their A/B assignments across the migration.
func Hash(s string) uint32 {
	var h int32
	for _, c := range s {
		h = h*31 + int32(c)
	}
	if h < 0 {
		return uint32(-h)
	}
	return uint32(h)
}

// sortStable orders items by descending priority then ascending id, the
// deterministic order sequential and ab_test rotation share.
func sortStable(items []models.LineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].ID < items[j].ID
	})
}

func activeOnly(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, li := range items {
		if li.Status == models.StatusActive {
			out = append(out, li)
		}
	}
	return out
}
