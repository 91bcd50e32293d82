package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipstash/internal/item"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := NewText("myhost", "hello")

	raw, err := m.Encode()
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeClipboard, got.Type)
	assert.Equal(t, "myhost", got.Source)
	require.Len(t, got.Formats, 1)
	assert.Equal(t, item.FormatText, got.Formats[0].Key)
}

func TestItemRoundTrip(t *testing.T) {
	src := item.New()
	src.SetFormat(item.FormatText, []byte("hello"))
	src.SetFormat(item.FormatImage, []byte{0x89, 0x50, 0x4E, 0x47})

	got, err := FromItem("myhost", src).Item()
	require.NoError(t, err)
	assert.True(t, src.Equal(got))
	assert.Equal(t, src.Hash(), got.Hash())
}

func TestItemRejectsBadBase64(t *testing.T) {
	m := &Message{
		Type:    TypeClipboard,
		Formats: []Format{{Key: item.FormatText, Data: "!!not base64!!"}},
	}
	_, err := m.Item()
	require.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{truncated"))
	require.Error(t, err)
}

func TestSettingsMessageOmitsClipboardFields(t *testing.T) {
	m := &Message{Type: TypeSettings, PollIntervalMS: 500}
	raw, err := m.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "formats")

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 500, got.PollIntervalMS)
}
