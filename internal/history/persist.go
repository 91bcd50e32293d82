package history

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.klb.dev/clipstash/internal/item"
)

// Save writes the store as a big-endian int32 entry count followed by the
// entries in store order, index 0 first.
func (s *Store) Save(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(s.entries))); err != nil {
		return fmt.Errorf("write entry count: %w", err)
	}
	for i, e := range s.entries {
		if err := e.EncodeTo(w); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
	}
	return nil
}

// Load appends entries previously written with Save. It appends at most
// min(storedCount, capacity) - Len() entries: loading into a non-empty
// store only tops it up to capacity and never replaces existing content.
// This asymmetry lets persisted history merge under a live session.
// Entries beyond the top-up are left unread.
//
// On a decode error the entries read so far are kept and the error is
// returned; logging is the caller's concern.
func (s *Store) Load(r io.Reader) error {
	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("read entry count: %w", err)
	}

	n := int(count)
	if n > s.max {
		n = s.max
	}
	n -= len(s.entries)
	if n <= 0 {
		return nil
	}

	for i := 0; i < n; i++ {
		it, err := item.DecodeFrom(r)
		if err != nil {
			if i > 0 {
				s.notify(Change{Kind: ChangeLoad, Row: len(s.entries) - i, Count: i})
			}
			return fmt.Errorf("read entry %d: %w", i, err)
		}
		s.entries = append(s.entries, it)
	}
	s.notify(Change{Kind: ChangeLoad, Row: len(s.entries) - n, Count: n})
	return nil
}
