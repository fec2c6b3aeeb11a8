package detector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

func randomListing(r *rand.Rand) ([]domain.WorkItem, domain.IDSet) {
	n := r.Intn(40)
	items := make([]domain.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, item(fmt.Sprintf("id-%d", r.Intn(20)), "ts", fmt.Sprint(r.Intn(1000))))
	}
	known := domain.NewIDSet()
	for k := r.Intn(10); k > 0; k-- {
		known[fmt.Sprintf("id-%d", r.Intn(20))] = struct{}{}
	}
	return items, known
}

func TestSelectProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 500; round++ {
		items, known := randomListing(r)
		limit := r.Intn(12)
		plan := Select(items, known, Options{Limit: limit})

		seen := map[string]bool{}
		for _, it := range plan.Batch {
			assert.False(t, seen[it.ID], "id %s dispatched twice", it.ID)
			seen[it.ID] = true
			assert.False(t, known.Has(it.ID), "known id %s selected", it.ID)
		}
		if limit > 0 {
			assert.LessOrEqual(t, len(plan.Batch), limit)
		}

		distinctFresh := map[string]bool{}
		for _, it := range items {
			if !known.Has(it.ID) {
				distinctFresh[it.ID] = true
			}
		}
		assert.Equal(t, len(distinctFresh), len(plan.Batch)+len(plan.Dropped))
	}
}

func TestSelectEmptyCacheSelectsEverything(t *testing.T) {
	items := []domain.WorkItem{item("b"), item("a"), item("c"), item("a")}

	for _, known := range []domain.IDSet{nil, domain.NewIDSet()} {
		plan := Select(items, known, Options{})
		ids := make([]string, 0, len(plan.Batch))
		for _, it := range plan.Batch {
			ids = append(ids, it.ID)
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids)
		assert.Empty(t, plan.Dropped)
	}
}

func TestSelectRejectsEmptyID(t *testing.T) {
	plan := Select([]domain.WorkItem{item(""), item("a")}, nil, Options{})

	require.Len(t, plan.Batch, 1)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, domain.SkipMalformed, plan.Skipped[0].Reason)
}

func TestSelectOrderListingKeepsUpstreamOrder(t *testing.T) {
	items := []domain.WorkItem{item("z"), item("x"), item("y")}
	plan := Select(items, nil, Options{Order: OrderListing, Limit: 2})

	require.Len(t, plan.Batch, 2)
	assert.Equal(t, "z", plan.Batch[0].ID)
	assert.Equal(t, "x", plan.Batch[1].ID)
	assert.Equal(t, "y", plan.Dropped[0].ItemID)
}

func TestSelectOrderNewestTruncatesOldest(t *testing.T) {
	items := []domain.WorkItem{
		item("old", "ts", "100"),
		item("new", "ts", "300"),
		item("mid-b", "ts", "200"),
		item("mid-a", "ts", "200"),
	}
	plan := Select(items, nil, Options{Order: OrderNewest, OrderTime: Timestamp{Attr: "ts"}, Limit: 3})

	require.Len(t, plan.Batch, 3)
	assert.Equal(t, "new", plan.Batch[0].ID)
	assert.Equal(t, "mid-a", plan.Batch[1].ID)
	assert.Equal(t, "mid-b", plan.Batch[2].ID)
	assert.Equal(t, "old", plan.Dropped[0].ItemID)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderByID, o)

	o, err = ParseOrder("newest")
	require.NoError(t, err)
	assert.Equal(t, OrderNewest, o)

	_, err = ParseOrder("random")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
