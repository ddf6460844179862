// Package reqqueue implements the ordered, deduplicated id set shared
// by the dispatcher's pending-chunk queue and the receiver's
// missing-chunk set: a sorted slice walked with sort.Search, since the
// standard library has no balanced tree and every operation here is
// either an insert-if-absent or a "next id after X, wrapping" scan.
package reqqueue

import "sort"

// Set is a sorted set of uint32 ids.
type Set struct {
	ids []uint32
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

func (s *Set) search(id uint32) int {
	return sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
}

// Add inserts id if not already present.
func (s *Set) Add(id uint32) {
	i := s.search(id)
	if i < len(s.ids) && s.ids[i] == id {
		return
	}
	s.ids = append(s.ids, 0)
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
}

// Remove deletes id if present.
func (s *Set) Remove(id uint32) {
	i := s.search(id)
	if i < len(s.ids) && s.ids[i] == id {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
	}
}

// Len returns the number of ids in the set.
func (s *Set) Len() int {
	return len(s.ids)
}

// Empty reports whether the set has no ids.
func (s *Set) Empty() bool {
	return len(s.ids) == 0
}

// Next returns the smallest id strictly greater than last, wrapping
// to the overall smallest id if none is greater. It reports false if
// the set is empty. The returned id is removed from the set, the way
// the dispatcher pops its next chunk to send.
func (s *Set) Next(last uint32) (uint32, bool) {
	if len(s.ids) == 0 {
		return 0, false
	}

	i := s.search(last + 1)
	if i == len(s.ids) {
		i = 0
	}

	id := s.ids[i]
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	return id, true
}

// Take returns up to n ids in ascending order without removing them,
// the way the receiver builds a ChunkRequest from its missing set.
func (s *Set) Take(n int) []uint32 {
	if n > len(s.ids) {
		n = len(s.ids)
	}
	out := make([]uint32, n)
	copy(out, s.ids[:n])
	return out
}
