package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadstack/addecide/internal/models"
)

func active(id string, priority, weight int) models.LineItem {
	return models.LineItem{ID: id, Priority: priority, Weight: weight, Status: models.StatusActive}
}

func TestRotateEmptyAndInactive(t *testing.T) {
	assert.Nil(t, Rotate(nil, models.RotationWeightedRandom, Context{}))

	paused := models.LineItem{ID: "a", Status: models.StatusPaused}
	archived := models.LineItem{ID: "b", Status: models.StatusArchived}
	for _, strategy := range []string{
		models.RotationWeightedRandom,
		models.RotationEvenDistribution,
		models.RotationPriorityFirst,
		models.RotationSequential,
		models.RotationABTest,
	} {
		assert.Nil(t, Rotate([]models.LineItem{paused, archived}, strategy, Context{AnonID: "anon"}), strategy)
	}
}

func TestWeightedRandomDistribution(t *testing.T) {
	items := []models.LineItem{
		active("a", 0, 1),
		active("b", 0, 3),
	}

	const trials = 10000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		winner := WeightedRandom(items)
		require.NotNil(t, winner)
		counts[winner.ID]++
	}

	// Shares should track weight ratios 1:3 within sampling noise.
	assert.InDelta(t, 0.25, float64(counts["a"])/trials, 0.05)
	assert.InDelta(t, 0.75, float64(counts["b"])/trials, 0.05)
}

func TestWeightedRandomZeroWeightStillServes(t *testing.T) {
	// A zero weight counts as 1, so the item keeps a small share instead
	// of never serving next to a weighted sibling.
	items := []models.LineItem{
		active("zero", 0, 0),
		active("five", 0, 5),
	}

	const trials = 12000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		winner := WeightedRandom(items)
		require.NotNil(t, winner)
		counts[winner.ID]++
	}
	assert.InDelta(t, 1.0/6.0, float64(counts["zero"])/trials, 0.05)
}

func TestWeightedRandomSingleItem(t *testing.T) {
	items := []models.LineItem{active("only", 0, 0)}
	winner := WeightedRandom(items)
	require.NotNil(t, winner)
	assert.Equal(t, "only", winner.ID)
}

func TestEvenDistribution(t *testing.T) {
	a := active("a", 1, 1)
	a.ServedImpressions = 10
	b := active("b", 1, 1)
	b.ServedImpressions = 3
	c := active("c", 5, 1)
	c.ServedImpressions = 3

	// Least served wins; ties break toward higher priority.
	winner := EvenDistribution([]models.LineItem{a, b, c})
	require.NotNil(t, winner)
	assert.Equal(t, "c", winner.ID)

	// Deterministic: repeated calls agree.
	for i := 0; i < 5; i++ {
		again := EvenDistribution([]models.LineItem{a, b, c})
		require.NotNil(t, again)
		assert.Equal(t, winner.ID, again.ID)
	}
}

func TestPriorityFirst(t *testing.T) {
	capTen := 10

	top := active("top", 9, 2)
	top.MaxImpressionsTotal = &capTen
	top.ServedImpressions = 10 // exhausted
	mid := active("mid", 5, 1)
	low := active("low", 1, 9)

	winner := PriorityFirst([]models.LineItem{low, mid, top})
	require.NotNil(t, winner)
	assert.Equal(t, "mid", winner.ID, "skips exhausted top priority")

	// When everything is exhausted the top item still comes back.
	mid.MaxImpressionsTotal = &capTen
	mid.ServedImpressions = 10
	low.MaxImpressionsTotal = &capTen
	low.ServedImpressions = 10
	winner = PriorityFirst([]models.LineItem{low, mid, top})
	require.NotNil(t, winner)
	assert.Equal(t, "top", winner.ID)
}

func TestPriorityFirstWeightBreaksTies(t *testing.T) {
	a := active("a", 5, 1)
	b := active("b", 5, 7)
	winner := PriorityFirst([]models.LineItem{a, b})
	require.NotNil(t, winner)
	assert.Equal(t, "b", winner.ID)
}

func TestSequentialCycles(t *testing.T) {
	items := []models.LineItem{
		active("b", 0, 1),
		active("a", 0, 1),
		active("c", 0, 1),
	}

	// Stable order for equal priorities is ascending id: a, b, c.
	var got []string
	last := -1
	for i := 0; i < 6; i++ {
		winner := Sequential(items, last)
		require.NotNil(t, winner)
		got = append(got, winner.ID)
		last++
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestSequentialPriorityOrdersCycle(t *testing.T) {
	items := []models.LineItem{
		active("low", 1, 1),
		active("high", 9, 1),
	}
	first := Sequential(items, -1)
	require.NotNil(t, first)
	assert.Equal(t, "high", first.ID)
	second := Sequential(items, 0)
	require.NotNil(t, second)
	assert.Equal(t, "low", second.ID)
}

func TestABTestStableAssignment(t *testing.T) {
	items := []models.LineItem{
		active("a", 0, 1),
		active("b", 0, 1),
		active("c", 0, 1),
	}

	first := ABTest(items, "anon-42")
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		again := ABTest(items, "anon-42")
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)
	}

	// Shuffled candidate order must not move the bucket.
	shuffled := []models.LineItem{items[2], items[0], items[1]}
	again := ABTest(shuffled, "anon-42")
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
}

func TestRotateABTestWithoutAnonIDFallsBack(t *testing.T) {
	items := []models.LineItem{active("a", 0, 1)}
	winner := Rotate(items, models.RotationABTest, Context{})
	require.NotNil(t, winner)
	assert.Equal(t, "a", winner.ID)
}

func TestRotateUnknownStrategyFallsBack(t *testing.T) {
	items := []models.LineItem{active("a", 0, 1)}
	winner := Rotate(items, "round_trip", Context{})
	require.NotNil(t, winner)
	assert.Equal(t, "a", winner.ID)
}

func TestHash(t *testing.T) {
	// h = h*31 + c over the bytes, 32-bit wraparound, absolute value.
	assert.Equal(t, uint32(0), Hash(""))
	assert.Equal(t, uint32(97), Hash("a"))
	assert.Equal(t, uint32(96354), Hash("abc"))
	assert.Equal(t, Hash("anon-123"), Hash("anon-123"))
	assert.NotEqual(t, Hash("anon-123"), Hash("anon-124"))
}
