package detector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// Timestamp reads a point in time from an item attribute. With an empty
// Layout the attribute holds unix seconds.
type Timestamp struct {
	Attr   string
	Layout string
}

// Parse returns the item's timestamp or an ErrMalformedItem error.
func (t Timestamp) Parse(item domain.WorkItem) (time.Time, error) {
	raw, ok := item.Attributes.Get(t.Attr)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp attribute %q", domain.ErrMalformedItem, t.Attr)
	}
	if t.Layout == "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q is not unix seconds", domain.ErrMalformedItem, raw)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	ts, err := time.Parse(t.Layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", domain.ErrMalformedItem, raw, err)
	}
	return ts, nil
}

// Selector reduces a de-duplicated listing before cache filtering.
type Selector interface {
	Select(items []domain.WorkItem) (kept []domain.WorkItem, skipped []domain.Skip)
}

// replacer is implemented by selectors that also decide which of two
// same-id items survives de-duplication.
type replacer interface {
	Replaces(candidate, current domain.WorkItem) bool
}

// MostRecentPerEntity keeps, for every entity, the item with the latest
// timestamp. Entity groups by that attribute; when empty items group by id.
type MostRecentPerEntity struct {
	Entity string
	Time   Timestamp
}

// Replaces reports whether candidate is newer than current. An item with a
// readable timestamp always beats one without.
func (m MostRecentPerEntity) Replaces(candidate, current domain.WorkItem) bool {
	ct, err := m.Time.Parse(candidate)
	if err != nil {
		return false
	}
	cur, err := m.Time.Parse(current)
	if err != nil {
		return true
	}
	return ct.After(cur)
}

func (m MostRecentPerEntity) key(item domain.WorkItem) (string, error) {
	if m.Entity == "" {
		return item.ID, nil
	}
	v, ok := item.Attributes.Get(m.Entity)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing entity attribute %q", domain.ErrMalformedItem, m.Entity)
	}
	return v, nil
}

// Select keeps the latest item of each entity in first-seen entity order.
// Items without a readable entity or timestamp are skipped as malformed.
func (m MostRecentPerEntity) Select(items []domain.WorkItem) ([]domain.WorkItem, []domain.Skip) {
	type best struct {
		item domain.WorkItem
		at   time.Time
	}
	var (
		order   []string
		winners = make(map[string]*best)
		skipped []domain.Skip
		losers  []domain.WorkItem
	)
	for _, item := range items {
		entity, err := m.key(item)
		if err != nil {
			skipped = append(skipped, domain.Skip{ItemID: item.ID, Reason: domain.SkipMalformed, Detail: err.Error()})
			continue
		}
		at, err := m.Time.Parse(item)
		if err != nil {
			skipped = append(skipped, domain.Skip{ItemID: item.ID, Reason: domain.SkipMalformed, Detail: err.Error()})
			continue
		}
		cur, ok := winners[entity]
		switch {
		case !ok:
			order = append(order, entity)
			winners[entity] = &best{item: item, at: at}
		case at.After(cur.at):
			losers = append(losers, cur.item)
			winners[entity] = &best{item: item, at: at}
		default:
			losers = append(losers, item)
		}
	}

	for _, l := range losers {
		entity, _ := m.key(l)
		skipped = append(skipped, domain.Skip{
			ItemID: l.ID,
			Reason: domain.SkipSuperseded,
			Detail: fmt.Sprintf("newer item %s for entity %s", winners[entity].item.ID, entity),
		})
	}

	kept := make([]domain.WorkItem, 0, len(order))
	for _, entity := range order {
		kept = append(kept, winners[entity].item)
	}
	return kept, skipped
}
