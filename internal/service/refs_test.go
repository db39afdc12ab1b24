package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRef_Variants(t *testing.T) {
	var refs []TagRef
	require.NoError(t, json.Unmarshal([]byte(`["smoke", {"name": " regression "}, {"id": 7}, "  ", {"id": "8"}]`), &refs))

	require.Len(t, refs, 5)
	assert.Equal(t, TagRef{Kind: TagByName, Name: "smoke"}, refs[0])
	assert.Equal(t, TagRef{Kind: TagByNameObject, Name: "regression"}, refs[1])
	assert.Equal(t, TagRef{Kind: TagByID, ID: 7}, refs[2])
	assert.True(t, refs[3].Skip())
	assert.Equal(t, uint(8), refs[4].ID)
}

func TestTagRef_RejectsOtherShapes(t *testing.T) {
	for _, body := range []string{`[42]`, `[["a"]]`, `[{"label":"x"}]`, `[null]`, `[{"id":"abc"}]`} {
		var refs []TagRef
		err := json.Unmarshal([]byte(body), &refs)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, body)
	}
}

func TestRefs_NonPositiveIDsDecodeAsUnmatchable(t *testing.T) {
	var tags []TagRef
	require.NoError(t, json.Unmarshal([]byte(`[{"id": 0}, {"id": -1}]`), &tags))
	for _, ref := range tags {
		assert.Equal(t, TagRef{Kind: TagByID}, ref)
		assert.False(t, ref.Skip())
	}

	var suites []SuiteRef
	require.NoError(t, json.Unmarshal([]byte(`[{"suite_id": 0}, {"suite_id": -1, "suite_name": "ignored"}]`), &suites))
	for _, ref := range suites {
		assert.True(t, ref.ByID())
		assert.Zero(t, ref.ID)
	}
}

func TestSuiteRef_Variants(t *testing.T) {
	var refs []SuiteRef
	require.NoError(t, json.Unmarshal([]byte(`[{"suite_id": 3, "position": 2}, {"suite_name": "API Suite"}]`), &refs))

	require.Len(t, refs, 2)
	assert.True(t, refs[0].ByID())
	require.NotNil(t, refs[0].Position)
	assert.Equal(t, 2, *refs[0].Position)
	assert.False(t, refs[1].ByID())
	assert.Equal(t, "API Suite", refs[1].Name)
	assert.Nil(t, refs[1].Position)
}

func TestSuiteRef_RejectsMissingKeys(t *testing.T) {
	for _, body := range []string{`["API"]`, `[{}]`, `[{"suite_name": ""}]`, `[{"suite_id": 1, "position": "x"}]`,
		`[{"suite_id": "abc"}]`, `[{"suite_name": "S", "position": 0}]`, `[{"suite_name": "S", "position": -2}]`} {
		var refs []SuiteRef
		err := json.Unmarshal([]byte(body), &refs)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, body)
	}
}

func TestRefs_MarshalRoundTrip(t *testing.T) {
	pos := 4
	b, err := json.Marshal([]interface{}{
		TagRef{Kind: TagByName, Name: "a"},
		TagRef{Kind: TagByID, ID: 2},
		SuiteRef{Name: "S", Position: &pos},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `["a", {"id": 2}, {"suite_name": "S", "position": 4}]`, string(b))
}
