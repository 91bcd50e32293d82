package item

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Limits applied while decoding untrusted streams.
const (
	maxFormats     = 1 << 16
	maxPayloadSize = 64 * 1024 * 1024
)

// EncodeTo writes the item in its stable binary form: a big-endian uint32
// format count followed by length-prefixed key/payload pairs. Keys are
// written in sorted order so the encoding of equal items is byte-identical.
func (it *Item) EncodeTo(w io.Writer) error {
	keys := it.Formats()
	sort.Strings(keys)

	if err := binary.Write(w, binary.BigEndian, uint32(len(keys))); err != nil {
		return fmt.Errorf("write format count: %w", err)
	}
	for _, k := range keys {
		if err := writeBlob(w, []byte(k)); err != nil {
			return fmt.Errorf("write format %q: %w", k, err)
		}
		if err := writeBlob(w, it.formats[k]); err != nil {
			return fmt.Errorf("write payload %q: %w", k, err)
		}
	}
	return nil
}

// DecodeFrom reads one item previously written with EncodeTo. The content
// hash is recomputed from the decoded formats.
func DecodeFrom(r io.Reader) (*Item, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read format count: %w", err)
	}
	if count > maxFormats {
		return nil, fmt.Errorf("format count %d exceeds limit", count)
	}

	it := New()
	for i := uint32(0); i < count; i++ {
		key, err := readBlob(r)
		if err != nil {
			return nil, fmt.Errorf("read format key: %w", err)
		}
		data, err := readBlob(r)
		if err != nil {
			return nil, fmt.Errorf("read payload %q: %w", key, err)
		}
		it.SetFormat(string(key), data)
	}
	return it, nil
}

func writeBlob(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBlob(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size > maxPayloadSize {
		return nil, fmt.Errorf("blob size %d exceeds limit", size)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
