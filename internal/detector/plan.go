package detector

import (
	"fmt"
	"sort"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// Order is the sort key applied before the batch is truncated to its limit.
type Order string

const (
	// OrderByID sorts by ascending id. It is the default.
	OrderByID Order = "id"
	// OrderNewest sorts by descending timestamp, ties broken by ascending id.
	OrderNewest Order = "newest"
	// OrderListing keeps upstream order. Use only when the source guarantees one.
	OrderListing Order = "listing"
)

// ParseOrder validates a configured order name. Empty means OrderByID.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderByID:
		return OrderByID, nil
	case OrderNewest, OrderListing:
		return Order(s), nil
	default:
		return "", fmt.Errorf("%w: unknown order %q", domain.ErrConfiguration, s)
	}
}

// RetryPolicy defines how retryable dispatch failures are repeated.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Options configures one detector invocation.
type Options struct {
	// Limit caps the batch size. Zero or negative means unbounded.
	Limit int
	// Selector optionally reduces items before cache filtering.
	Selector Selector
	Order    Order
	// OrderTime is read when Order is OrderNewest.
	OrderTime Timestamp

	Concurrency int
	CallTimeout time.Duration
	Retry       RetryPolicy
	DryRun      bool
}

// Plan is the pure selection result: what will be dispatched and why
// everything else was left out.
type Plan struct {
	Listed  int
	Batch   []domain.WorkItem
	Skipped []domain.Skip
	Dropped []domain.Skip
}

// Select computes the dispatch batch from a listing and the known ids. It has
// no side effects and is deterministic for a given input.
func Select(items []domain.WorkItem, known domain.IDSet, opts Options) Plan {
	plan := Plan{Listed: len(items)}

	var prefer func(candidate, current domain.WorkItem) bool
	if r, ok := opts.Selector.(replacer); ok {
		prefer = r.Replaces
	}
	items, skipped := dedupe(items, prefer)
	plan.Skipped = append(plan.Skipped, skipped...)

	if opts.Selector != nil {
		items, skipped = opts.Selector.Select(items)
		plan.Skipped = append(plan.Skipped, skipped...)
	}

	fresh := make([]domain.WorkItem, 0, len(items))
	for _, item := range items {
		if known.Has(item.ID) {
			plan.Skipped = append(plan.Skipped, domain.Skip{ItemID: item.ID, Reason: domain.SkipCached})
			continue
		}
		fresh = append(fresh, item)
	}

	fresh, skipped = sortItems(fresh, opts)
	plan.Skipped = append(plan.Skipped, skipped...)

	if opts.Limit > 0 && len(fresh) > opts.Limit {
		for _, item := range fresh[opts.Limit:] {
			plan.Dropped = append(plan.Dropped, domain.Skip{
				ItemID: item.ID,
				Reason: domain.SkipOverLimit,
				Detail: fmt.Sprintf("batch limit %d", opts.Limit),
			})
		}
		fresh = fresh[:opts.Limit]
	}
	plan.Batch = fresh
	return plan
}

// dedupe keeps one item per id. The first occurrence wins unless prefer says
// a later one should replace it; the replacement takes the first one's slot.
func dedupe(items []domain.WorkItem, prefer func(candidate, current domain.WorkItem) bool) ([]domain.WorkItem, []domain.Skip) {
	var (
		out     = make([]domain.WorkItem, 0, len(items))
		index   = make(map[string]int, len(items))
		skipped []domain.Skip
	)
	for _, item := range items {
		if err := item.Validate(); err != nil {
			skipped = append(skipped, domain.Skip{ItemID: item.ID, Reason: domain.SkipMalformed, Detail: err.Error()})
			continue
		}
		i, seen := index[item.ID]
		if !seen {
			index[item.ID] = len(out)
			out = append(out, item)
			continue
		}
		if prefer != nil && prefer(item, out[i]) {
			out[i] = item
		}
		skipped = append(skipped, domain.Skip{ItemID: item.ID, Reason: domain.SkipDuplicate})
	}
	return out, skipped
}

func sortItems(items []domain.WorkItem, opts Options) ([]domain.WorkItem, []domain.Skip) {
	switch opts.Order {
	case OrderListing:
		return items, nil
	case OrderNewest:
		type stamped struct {
			item domain.WorkItem
			at   time.Time
		}
		var (
			rows    = make([]stamped, 0, len(items))
			skipped []domain.Skip
		)
		for _, item := range items {
			at, err := opts.OrderTime.Parse(item)
			if err != nil {
				skipped = append(skipped, domain.Skip{ItemID: item.ID, Reason: domain.SkipMalformed, Detail: err.Error()})
				continue
			}
			rows = append(rows, stamped{item: item, at: at})
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].at.Equal(rows[j].at) {
				return rows[i].at.After(rows[j].at)
			}
			return rows[i].item.ID < rows[j].item.ID
		})
		out := make([]domain.WorkItem, len(rows))
		for i, r := range rows {
			out[i] = r.item
		}
		return out, skipped
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		return items, nil
	}
}
