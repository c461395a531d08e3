package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ton-apicha/ibit-repair2-sub001/internal/apperr"
)

type sample struct {
	ID       string           `json:"id" validate:"required,uuid"`
	Text     string           `json:"text" validate:"required,min=10,max=20"`
	Status   string           `json:"status" validate:"omitempty,jobstatus"`
	Due      Optional[string] `json:"due" validate:"omitempty,iso8601"`
	Priority *int             `json:"priority" validate:"omitnil,oneof=0 1 2"`
}

const validID = "0b5d8b2e-6a7c-4f0e-9d36-2f4c0b1e7a11"

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr.Error, got %v", err)
	require.Equal(t, apperr.KindValidation, e.Kind)
	out := map[string]string{}
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	p := 7
	err := Struct(sample{ID: "not-an-id", Text: "short", Status: "LOST", Priority: &p})
	fields := fieldsOf(t, err)

	assert.Equal(t, "must be a valid identifier", fields["id"])
	assert.Equal(t, "must be at least 10 characters", fields["text"])
	assert.Contains(t, fields["status"], "RECEIVED")
	assert.Equal(t, "must be one of [0 1 2]", fields["priority"])
}

func TestStructRuneLengthBoundary(t *testing.T) {
	assert.Error(t, Struct(sample{ID: validID, Text: strings.Repeat("a", 9)}))
	assert.NoError(t, Struct(sample{ID: validID, Text: strings.Repeat("a", 10)}))
	// multi-byte characters count once
	assert.NoError(t, Struct(sample{ID: validID, Text: strings.Repeat("ก", 10)}))
	assert.Error(t, Struct(sample{ID: validID, Text: strings.Repeat("a", 21)}))
}

func TestOptionalStates(t *testing.T) {
	var absent, null, value sample
	require.NoError(t, json.Unmarshal([]byte(`{}`), &absent))
	require.NoError(t, json.Unmarshal([]byte(`{"due": null}`), &null))
	require.NoError(t, json.Unmarshal([]byte(`{"due": "2026-10-20T10:00:00Z"}`), &value))

	assert.False(t, absent.Due.Set)
	assert.True(t, null.Due.Clears())
	assert.True(t, value.Due.HasValue())
	assert.Equal(t, "2026-10-20T10:00:00Z", value.Due.Value)
}

func TestOptionalValidatesHeldValue(t *testing.T) {
	base := sample{ID: validID, Text: "long enough text"}

	s := base
	s.Due = Null[string]()
	assert.NoError(t, Struct(s))

	s.Due = Some("2026-10-20")
	assert.NoError(t, Struct(s))

	s.Due = Some("next tuesday")
	fields := fieldsOf(t, Struct(s))
	assert.Equal(t, "must be an ISO-8601 datetime", fields["due"])
}

func TestPriorityZeroIsAccepted(t *testing.T) {
	p := 0
	assert.NoError(t, Struct(sample{ID: validID, Text: "long enough text", Priority: &p}))
}

func TestFromBindError(t *testing.T) {
	var s sample
	err := json.Unmarshal([]byte(`{"priority": "high"}`), &s)
	require.Error(t, err)

	fields := fieldsOf(t, FromBindError(err))
	assert.Equal(t, "must be a int", fields["priority"])

	err = json.Unmarshal([]byte(`{`), &s)
	fields = fieldsOf(t, FromBindError(err))
	assert.Contains(t, fields["body"], "malformed JSON")
}

func TestParseDateTime(t *testing.T) {
	_, err := ParseDateTime("2026-10-20T10:00:00.123+07:00")
	assert.NoError(t, err)
	_, err = ParseDateTime("2026-10-20")
	assert.NoError(t, err)
	_, err = ParseDateTime("20/10/2026")
	assert.Error(t, err)
}
