package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

const terraLayout = "2006-01-02T15:04:05.999999Z"

func TestMostRecentPerEntityKeepsLatest(t *testing.T) {
	sel := MostRecentPerEntity{Entity: "entity_type", Time: Timestamp{Attr: "submission_date", Layout: terraLayout}}
	items := []domain.WorkItem{
		item("s1", "entity_type", "run_a", "submission_date", "2024-11-01T10:00:00.000Z"),
		item("s2", "entity_type", "run_a", "submission_date", "2024-11-02T10:00:00.000Z"),
		item("s3", "entity_type", "run_b", "submission_date", "2024-10-01T10:00:00.000Z"),
	}

	kept, skipped := sel.Select(items)

	require.Len(t, kept, 2)
	assert.Equal(t, "s2", kept[0].ID)
	assert.Equal(t, "s3", kept[1].ID)
	require.Len(t, skipped, 1)
	assert.Equal(t, "s1", skipped[0].ItemID)
	assert.Equal(t, domain.SkipSuperseded, skipped[0].Reason)
}

func TestMostRecentPerEntitySkipsUnparseableTimestamp(t *testing.T) {
	sel := MostRecentPerEntity{Entity: "entity_type", Time: Timestamp{Attr: "submission_date", Layout: terraLayout}}
	items := []domain.WorkItem{
		item("s1", "entity_type", "run_a", "submission_date", "not-a-date"),
		item("s2", "entity_type", "run_a", "submission_date", "2024-11-02T10:00:00.000Z"),
		item("s3", "submission_date", "2024-11-02T10:00:00.000Z"),
	}

	kept, skipped := sel.Select(items)

	require.Len(t, kept, 1)
	assert.Equal(t, "s2", kept[0].ID)
	require.Len(t, skipped, 2)
	for _, s := range skipped {
		assert.Equal(t, domain.SkipMalformed, s.Reason)
	}
}

func TestMostRecentPerEntityEqualTimestampsKeepFirst(t *testing.T) {
	sel := MostRecentPerEntity{Entity: "e", Time: Timestamp{Attr: "ts"}}
	kept, _ := sel.Select([]domain.WorkItem{item("first", "e", "x", "ts", "5"), item("second", "e", "x", "ts", "5")})

	require.Len(t, kept, 1)
	assert.Equal(t, "first", kept[0].ID)
}

func TestTimestampParse(t *testing.T) {
	ts, err := Timestamp{Attr: "ts"}.Parse(item("a", "ts", "1700000000"))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ts)

	ts, err = Timestamp{Attr: "d", Layout: terraLayout}.Parse(item("a", "d", "2024-11-21T08:15:30.123Z"))
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(ts.Nanosecond()))

	_, err = Timestamp{Attr: "missing"}.Parse(item("a"))
	assert.ErrorIs(t, err, domain.ErrMalformedItem)
}
