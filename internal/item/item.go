// Package item defines a single clipboard capture: a set of named byte
// payloads keyed by a MIME-type-like format string, plus a content hash
// used for best-effort lookup and deduplication.
//
// The hash is order-independent over the format set (XOR of per-format
// terms) and is not cryptographically strong; collisions are tolerated
// by every caller.
package item

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Well-known format keys.
const (
	FormatText  = "text/plain"
	FormatImage = "image/png"
)

// Item is one clipboard capture.
type Item struct {
	formats map[string][]byte
	hash    uint64
}

// New returns an empty item with no formats.
func New() *Item {
	return &Item{formats: make(map[string][]byte)}
}

// NewText returns an item carrying a single text/plain payload.
func NewText(text string) *Item {
	it := New()
	it.SetFormat(FormatText, []byte(text))
	return it
}

// SetFormat stores data under key, replacing any previous payload for that
// key, and refreshes the content hash.
func (it *Item) SetFormat(key string, data []byte) {
	it.formats[key] = data
	it.hash = it.HashFormats(nil)
}

// Format returns the payload stored under key, or nil.
func (it *Item) Format(key string) []byte { return it.formats[key] }

// Formats returns the set of format keys. Order is unspecified.
func (it *Item) Formats() []string {
	keys := make([]string, 0, len(it.formats))
	for k := range it.formats {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of formats.
func (it *Item) Len() int { return len(it.formats) }

// Empty reports whether the item carries no formats at all.
func (it *Item) Empty() bool { return len(it.formats) == 0 }

// Text returns the text/plain payload as a string, or "".
func (it *Item) Text() string { return string(it.formats[FormatText]) }

// Hash returns the content hash over all formats.
func (it *Item) Hash() uint64 { return it.hash }

// HashFormats computes the content hash over the given format keys, or over
// all formats when keys is nil. Each format contributes
// H(payload) + H(key), combined with XOR so the result does not depend on
// iteration order. Missing keys contribute the hash of an empty payload.
func (it *Item) HashFormats(keys []string) uint64 {
	if keys == nil {
		keys = it.Formats()
	}
	var h uint64
	for _, k := range keys {
		h ^= xxhash.Sum64(it.formats[k]) + xxhash.Sum64String(k)
	}
	return h
}

// Equal reports whether both items carry exactly the same formats with
// byte-identical payloads.
func (it *Item) Equal(other *Item) bool {
	if other == nil || len(it.formats) != len(other.formats) {
		return false
	}
	for k, v := range it.formats {
		w, ok := other.formats[k]
		if !ok || !bytes.Equal(v, w) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy restricted to the given format keys; formats
// with empty payloads are skipped. When keys is nil the copy instead keeps
// every non-empty format whose key does not begin with an uppercase
// character, which drops transient markers such as UTF8_STRING or
// TIMESTAMP.
func (it *Item) Clone(keys []string) *Item {
	out := New()
	if keys != nil {
		for _, k := range keys {
			if data := it.formats[k]; len(data) > 0 {
				out.SetFormat(k, append([]byte(nil), data...))
			}
		}
		return out
	}
	for k, data := range it.formats {
		if k == "" || len(data) == 0 {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(k); unicode.IsUpper(r) {
			continue
		}
		out.SetFormat(k, append([]byte(nil), data...))
	}
	return out
}
