// Package history implements the ordered, bounded clipboard history.
//
// Index 0 is the most-recent entry, the "current clipboard" slot. The
// store has no internal locking: exactly one goroutine must own it and
// perform all mutations (see server.Owner). Change listeners are invoked
// synchronously on that owning goroutine.
package history

import (
	"sort"

	"go.klb.dev/clipstash/internal/item"
)

// DefaultCapacity matches the historical default of 100 retained entries.
const DefaultCapacity = 100

// ChangeKind classifies a store mutation for change listeners.
type ChangeKind int

const (
	ChangeInsert ChangeKind = iota
	ChangeRemove
	ChangeMove
	ChangeReplace
	ChangeLoad
)

// Change describes one mutation. Row is the first affected row; Count is
// the number of affected rows for inserts and removals. For moves Row is
// the source and Count the destination row.
type Change struct {
	Kind  ChangeKind
	Row   int
	Count int
}

// Listener receives change notifications. The store never inspects who is
// listening; listeners are invoked in registration order after the
// mutation has been applied.
type Listener func(Change)

// Direction selects how MoveMany relocates a block of rows.
type Direction int

const (
	MoveUp Direction = iota
	MoveDown
	MoveToTop
	MoveToBottom
)

// Store is the bounded ordered history container.
type Store struct {
	entries   []*item.Item
	max       int
	listeners []Listener
}

// New returns an empty store with the given capacity. Capacities below
// zero clamp to zero (a store that evicts everything).
func New(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{max: capacity}
}

// Listen registers a change listener.
func (s *Store) Listen(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(c Change) {
	for _, fn := range s.listeners {
		fn(c)
	}
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Capacity returns the maximum number of retained entries.
func (s *Store) Capacity() int { return s.max }

// At returns the entry at row, or nil if row is out of range.
func (s *Store) At(row int) *item.Item {
	if row < 0 || row >= len(s.entries) {
		return nil
	}
	return s.entries[row]
}

// Append adds an empty entry at the tail and returns its row. The caller
// is expected to fill the slot immediately.
func (s *Store) Append() int {
	row := len(s.entries)
	s.entries = append(s.entries, item.New())
	s.notify(Change{Kind: ChangeInsert, Row: row, Count: 1})
	return row
}

// Insert places it at row, clamped to [0, Len]. Later entries shift one
// row toward the tail.
func (s *Store) Insert(row int, it *item.Item) {
	if row < 0 {
		row = 0
	} else if row > len(s.entries) {
		row = len(s.entries)
	}
	s.entries = append(s.entries, nil)
	copy(s.entries[row+1:], s.entries[row:])
	s.entries[row] = it
	s.notify(Change{Kind: ChangeInsert, Row: row, Count: 1})
}

// Remove deletes the entry at row. Out-of-range rows are a no-op returning
// false.
func (s *Store) Remove(row int) bool {
	return s.RemoveRange(row, 1)
}

// RemoveRange deletes up to count entries starting at row, clamped so the
// removal never runs past the tail. It reports whether anything was
// removed.
func (s *Store) RemoveRange(row, count int) bool {
	if row < 0 || row >= len(s.entries) || count <= 0 {
		return false
	}
	last := row + count
	if last > len(s.entries) {
		last = len(s.entries)
	}
	removed := last - row
	s.entries = append(s.entries[:row], s.entries[last:]...)
	s.notify(Change{Kind: ChangeRemove, Row: row, Count: removed})
	return true
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.RemoveRange(0, len(s.entries))
}

// NormalizeIndex maps row onto [0, n). Out-of-range rows either wrap to
// the opposite end (cycle) or clamp to the nearest end. Returns -1 when
// n == 0. Pure function so keyboard-style move logic stays unit-testable.
func NormalizeIndex(row, n int, cycle bool) int {
	if n == 0 {
		return -1
	}
	switch {
	case row >= n:
		if cycle {
			return 0
		}
		return n - 1
	case row < 0:
		if cycle {
			return n - 1
		}
		return 0
	default:
		return row
	}
}

// Normalize applies NormalizeIndex against the current length.
func (s *Store) Normalize(row int, cycle bool) int {
	return NormalizeIndex(row, len(s.entries), cycle)
}

// Move relocates the entry at from so it ends up at row to. Both rows are
// first normalized with the wrap/clamp rule selected by cycle. Returns
// false when the store is empty.
func (s *Store) Move(from, to int, cycle bool) bool {
	from = s.Normalize(from, cycle)
	to = s.Normalize(to, cycle)
	if from == -1 || to == -1 {
		return false
	}
	if from != to {
		e := s.entries[from]
		s.entries = append(s.entries[:from], s.entries[from+1:]...)
		s.entries = append(s.entries[:to], append([]*item.Item{e}, s.entries[to:]...)...)
	}
	s.notify(Change{Kind: ChangeMove, Row: from, Count: to})
	return true
}

// MoveMany relocates the given rows one step (or to the boundary) in the
// requested direction, preserving their relative order. Rows are processed
// tail-first when moving toward the tail and head-first otherwise, with an
// accumulating offset absorbing collisions at the list boundary. It
// reports whether any moved entry touched a boundary; callers use that to
// decide whether the current-clipboard slot changed.
func (s *Store) MoveMany(rows []int, dir Direction) bool {
	list := append([]int(nil), rows...)
	if dir == MoveDown || dir == MoveToBottom {
		sortDesc(list)
	} else {
		sortAsc(list)
	}

	touched := false
	for i, d := 0, 0; i < len(list); i++ {
		from := list[i] + d

		var to int
		switch dir {
		case MoveDown:
			to = from + 1
		case MoveUp:
			to = from - 1
		case MoveToBottom:
			to = len(s.entries) - i - 1
		default: // MoveToTop
			to = i
		}

		if to < 0 {
			d--
		} else if to >= len(s.entries) {
			d++
		}

		if !s.Move(from, to, true) {
			return false
		}
		if !touched {
			touched = to == 0 || from == 0 || to == len(s.entries)
		}
	}
	return touched
}

// SetCapacity changes the retained-entry limit, clamping negatives to
// zero, and evicts from the tail until the store fits.
func (s *Store) SetCapacity(max int) {
	if max < 0 {
		max = 0
	}
	s.max = max
	if n := len(s.entries); max < n {
		s.RemoveRange(max, n-max)
	}
}

// Ranked pairs an entry with its original row for Sort comparators.
type Ranked struct {
	Row  int
	Item *item.Item
}

// Sort reorders only the given rows according to less, leaving every other
// row untouched. If any row is out of range the call is a no-op.
func (s *Store) Sort(rows []int, less func(a, b Ranked) bool) {
	pairs := make([]Ranked, 0, len(rows))
	slots := make([]int, 0, len(rows))
	for _, row := range rows {
		if row < 0 || row >= len(s.entries) {
			return
		}
		pairs = append(pairs, Ranked{Row: row, Item: s.entries[row]})
		slots = append(slots, row)
	}

	sortAsc(slots)
	sortRanked(pairs, less)

	for i, p := range pairs {
		slot := slots[i]
		if p.Row != slot {
			s.entries[slot] = p.Item
			s.notify(Change{Kind: ChangeReplace, Row: slot, Count: 1})
		}
	}
}

// FindByHash returns the row of the first entry whose content hash equals
// h, or -1.
func (s *Store) FindByHash(h uint64) int {
	for i, e := range s.entries {
		if e.Hash() == h {
			return i
		}
	}
	return -1
}

// Add inserts it at row (clamped) unless force is false and the entry at
// row 0 already carries identical content. Overflow beyond the capacity is
// evicted from the tail. Reports whether the entry was accepted.
func (s *Store) Add(it *item.Item, force bool, row int) bool {
	if !force && len(s.entries) > 0 && s.entries[0].Equal(it) {
		return false
	}

	s.Insert(row, it)

	if len(s.entries) > s.max {
		s.RemoveRange(len(s.entries)-1, 1)
	}
	return true
}

// Replace swaps the payload at row in place, keeping its position.
func (s *Store) Replace(row int, it *item.Item) bool {
	if row < 0 || row >= len(s.entries) {
		return false
	}
	s.entries[row] = it
	s.notify(Change{Kind: ChangeReplace, Row: row, Count: 1})
	return true
}

// MoveToFront makes the entry at row the current clipboard slot.
func (s *Store) MoveToFront(row int) bool {
	return s.Move(row, 0, true)
}

// Select moves the first entry matching h to the front. Returns false if
// no entry matches.
func (s *Store) Select(h uint64) bool {
	row := s.FindByHash(h)
	if row < 0 {
		return false
	}
	return s.Move(row, 0, true)
}

func sortAsc(a []int)  { sort.Ints(a) }
func sortDesc(a []int) { sort.Sort(sort.Reverse(sort.IntSlice(a))) }

func sortRanked(a []Ranked, less func(x, y Ranked) bool) {
	sort.SliceStable(a, func(i, j int) bool { return less(a[i], a[j]) })
}
