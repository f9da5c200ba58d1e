package jsondoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_EmptyIsNil(t *testing.T) {
	doc, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDecode_PlainDocument(t *testing.T) {
	raw := []byte(`{"tasks":[],"projects":[],"sections":[],"areas":[],"settings":{}}`)
	doc, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Empty(t, doc.Tasks)
}

func TestDecode_StripsBOMAndTrailingNUL(t *testing.T) {
	raw := append(append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"tasks":[],"projects":[],"sections":[],"areas":[],"settings":{}}`)...), 0, 0, 0)
	doc, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestDecode_TruncatesTrailingGarbageAfterLastBrace(t *testing.T) {
	raw := []byte(`{"tasks":[],"projects":[],"sections":[],"areas":[],"settings":{}}` + "garbage-after-truncated-write")
	doc, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestDecode_SevereTruncationFails(t *testing.T) {
	raw := []byte(`{"tasks":[{"id":"a"`)
	_, err := Decode(raw)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := []byte(`{"tasks":[],"projects":[],"sections":[],"areas":[],"settings":{}}`)
	doc, err := Decode(raw)
	require.NoError(t, err)

	encoded, err := Encode(doc)
	require.NoError(t, err)

	doc2, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, doc, doc2)
}
