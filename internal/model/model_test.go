package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_RoundTripPreservesUnknownKeys(t *testing.T) {
	raw := []byte(`{
		"ai": {"model": "x"},
		"lastSyncStatus": "success",
		"customWidget": {"enabled": true},
		"anotherTopLevelKey": 42
	}`)

	var s Settings
	require.NoError(t, json.Unmarshal(raw, &s))

	require.NotNil(t, s.AI)
	assert.Equal(t, "x", s.AI["model"])
	require.NotNil(t, s.LastSyncStatus)
	assert.Equal(t, "success", *s.LastSyncStatus)

	require.NotNil(t, s.Extra)
	widget, ok := s.Extra["customWidget"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, widget["enabled"])
	assert.Equal(t, float64(42), s.Extra["anotherTopLevelKey"])

	encoded, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(encoded, &out))
	assert.Equal(t, "success", out["lastSyncStatus"])
	assert.Equal(t, float64(42), out["anotherTopLevelKey"])
	widgetOut, ok := out["customWidget"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, widgetOut["enabled"])
}

func TestSettings_MarshalOmitsNilExtra(t *testing.T) {
	s := Settings{}
	encoded, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(encoded, &out))
	assert.NotContains(t, out, "Extra")
}
