package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesKeepInsertionOrder(t *testing.T) {
	attrs := NewAttributes("workflow", "phoenix", "entity_type", "run_01", "submission_date", "2024-11-21T08:00:00.000Z")

	raw, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.Equal(t, `{"workflow":"phoenix","entity_type":"run_01","submission_date":"2024-11-21T08:00:00.000Z"}`, string(raw))

	var back Attributes
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, attrs, back)
}

func TestAttributesWithReplacesInPlace(t *testing.T) {
	attrs := NewAttributes("a", "1", "b", "2")
	updated := attrs.With("a", "3").With("c", "4")

	assert.Equal(t, Attributes{{"a", "3"}, {"b", "2"}, {"c", "4"}}, updated)
	assert.Equal(t, "1", attrs.Value("a"), "With must not mutate the receiver")
}

func TestAttributesUnmarshalRejectsNonStrings(t *testing.T) {
	var attrs Attributes
	err := json.Unmarshal([]byte(`{"a": 1}`), &attrs)
	assert.Error(t, err)
}

func TestReportErr(t *testing.T) {
	r := &Report{Pipeline: "terra/ws", Outcomes: []Outcome{
		{Item: WorkItem{ID: "a"}, Status: OutcomeDispatched},
		{Item: WorkItem{ID: "b"}, Status: OutcomeFailed},
	}}

	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatch)
	assert.Len(t, r.Dispatched(), 1)

	r.Outcomes[1].Status = OutcomeDispatched
	assert.NoError(t, r.Err())
}

func TestWorkItemExpand(t *testing.T) {
	item := WorkItem{ID: "sub-1", Attributes: NewAttributes("project", "waphl", "workspace", "prod")}

	out, err := item.Expand("${project}_${workspace}_${id}")
	require.NoError(t, err)
	assert.Equal(t, "waphl_prod_sub-1", out)

	_, err = item.Expand("${workflow}")
	assert.ErrorIs(t, err, ErrMalformedItem)
}
