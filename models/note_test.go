package models

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"comma string", `{"tags":"sleep, good"}`, []string{"sleep", "good"}},
		{"array", `{"tags":[" sleep ","","good"]}`, []string{"sleep", "good"}},
		{"empty string", `{"tags":""}`, []string{}},
		{"trailing commas", `{"tags":",a,, b ,"}`, []string{"a", "b"}},
		{"duplicates kept", `{"tags":"a,a"}`, []string{"a", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req NoteRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, []string(req.Tags))
		})
	}
}

func TestTagList_UnmarshalJSON_Null(t *testing.T) {
	var req NoteRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tags":null}`), &req))
	assert.Empty(t, req.Tags)
}

func TestTagList_UnmarshalJSON_RejectsNumbers(t *testing.T) {
	var req NoteRequest
	err := json.Unmarshal([]byte(`{"tags":42}`), &req)
	require.Error(t, err)
}

func TestNormalizeTags_NeverNil(t *testing.T) {
	assert.NotNil(t, NormalizeTags(nil))
	assert.Empty(t, NormalizeTags([]string{" ", ""}))
}

func TestParseNoteQuery(t *testing.T) {
	q, err := ParseNoteQuery(" walk ", "Happy", "sleep", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "walk", q.Q)
	assert.Equal(t, "Happy", q.Mood)
	assert.Equal(t, "sleep", q.Tag)
	require.NotNil(t, q.From)
	require.NotNil(t, q.To)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *q.From)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *q.To)
}

func TestParseNoteQuery_RFC3339(t *testing.T) {
	q, err := ParseNoteQuery("", "", "", "2024-01-01T10:00:00+02:00", "")
	require.NoError(t, err)
	require.NotNil(t, q.From)
	assert.Nil(t, q.To)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), *q.From)
}

func TestParseNoteQuery_UnescapedOffset(t *testing.T) {
	// url.Values decodes "+02:00" to " 02:00" when the client skips escaping
	values, err := url.ParseQuery("from=2024-01-02T10:00:00+02:00&to=2024-01-03T10:00:00.5+05:30")
	require.NoError(t, err)

	q, err := ParseNoteQuery("", "", "", values.Get("from"), values.Get("to"))
	require.NoError(t, err)
	require.NotNil(t, q.From)
	require.NotNil(t, q.To)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), *q.From)
	assert.Equal(t, time.Date(2024, 1, 3, 4, 30, 0, int(500*time.Millisecond), time.UTC), *q.To)
}

func TestParseNoteQuery_Empty(t *testing.T) {
	q, err := ParseNoteQuery("", "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, NoteQuery{}, q)
}

func TestParseNoteQuery_Invalid(t *testing.T) {
	_, err := ParseNoteQuery("", "", "", "yesterday", "")
	require.Error(t, err)

	_, err = ParseNoteQuery("", "", "", "", "2024-13-45")
	require.Error(t, err)

	_, err = ParseNoteQuery("", "", "", "2024-02-01", "2024-01-01")
	require.Error(t, err)
}
