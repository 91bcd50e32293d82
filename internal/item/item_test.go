package item

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsOrderIndependent(t *testing.T) {
	a := New()
	a.SetFormat("text/plain", []byte("hello"))
	a.SetFormat("text/html", []byte("<b>hello</b>"))

	b := New()
	b.SetFormat("text/html", []byte("<b>hello</b>"))
	b.SetFormat("text/plain", []byte("hello"))

	assert.Equal(t, a.Hash(), b.Hash())
}

func TestHashChangesWithContent(t *testing.T) {
	a := NewText("hello")
	b := NewText("goodbye")
	assert.NotEqual(t, a.Hash(), b.Hash())

	// Same payload under a different format key is a different capture.
	c := New()
	c.SetFormat("text/html", []byte("hello"))
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestHashFormatsSubset(t *testing.T) {
	it := New()
	it.SetFormat("text/plain", []byte("hello"))
	it.SetFormat("image/png", []byte{0x89, 0x50})

	textOnly := New()
	textOnly.SetFormat("text/plain", []byte("hello"))

	assert.Equal(t, textOnly.Hash(), it.HashFormats([]string{"text/plain"}))
	assert.NotEqual(t, it.Hash(), it.HashFormats([]string{"text/plain"}))
}

func TestEqual(t *testing.T) {
	a := NewText("x")
	b := NewText("x")
	require.True(t, a.Equal(b))

	b.SetFormat("image/png", []byte{1})
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}

func TestCloneWithFilterSkipsEmptyPayloads(t *testing.T) {
	it := New()
	it.SetFormat("text/plain", []byte("hello"))
	it.SetFormat("text/html", nil)
	it.SetFormat("image/png", []byte{1, 2, 3})

	out := it.Clone([]string{"text/plain", "text/html", "application/x-missing"})
	assert.Equal(t, []string{"text/plain"}, out.Formats())
	assert.Equal(t, "hello", out.Text())
}

func TestCloneWithoutFilterDropsUppercaseKeys(t *testing.T) {
	it := New()
	it.SetFormat("text/plain", []byte("hello"))
	it.SetFormat("UTF8_STRING", []byte("hello"))
	it.SetFormat("TIMESTAMP", []byte{0})
	it.SetFormat("", []byte("nameless"))
	it.SetFormat("text/html", nil)

	out := it.Clone(nil)
	assert.Equal(t, []string{"text/plain"}, out.Formats())
}

func TestCloneIsDeep(t *testing.T) {
	it := New()
	payload := []byte("mutable")
	it.SetFormat("text/plain", payload)

	out := it.Clone(nil)
	payload[0] = 'X'
	assert.Equal(t, "mutable", out.Text())
}

func TestCodecRoundTrip(t *testing.T) {
	it := New()
	it.SetFormat("text/plain", []byte("hello"))
	it.SetFormat("image/png", bytes.Repeat([]byte{0xAB}, 1024))
	it.SetFormat("application/x-empty", nil)

	var buf bytes.Buffer
	require.NoError(t, it.EncodeTo(&buf))

	got, err := DecodeFrom(&buf)
	require.NoError(t, err)
	assert.True(t, it.Equal(got))
	assert.Equal(t, it.Hash(), got.Hash())
}

func TestCodecIsDeterministic(t *testing.T) {
	a := New()
	a.SetFormat("b", []byte("2"))
	a.SetFormat("a", []byte("1"))

	b := New()
	b.SetFormat("a", []byte("1"))
	b.SetFormat("b", []byte("2"))

	var ba, bb bytes.Buffer
	require.NoError(t, a.EncodeTo(&ba))
	require.NoError(t, b.EncodeTo(&bb))
	assert.Equal(t, ba.Bytes(), bb.Bytes())
}

func TestDecodeTruncatedStream(t *testing.T) {
	it := NewText("hello")
	var buf bytes.Buffer
	require.NoError(t, it.EncodeTo(&buf))

	_, err := DecodeFrom(bytes.NewReader(buf.Bytes()[:buf.Len()-2]))
	require.Error(t, err)
}

func TestDecodeRejectsOversizedCounts(t *testing.T) {
	// format count far over the limit
	_, err := DecodeFrom(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
	require.Error(t, err)
}
