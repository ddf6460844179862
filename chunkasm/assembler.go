// Package chunkasm reassembles a single chunk from out-of-order,
// possibly-overlapping fragments delivered over multicast. Fragments
// are tracked as a sorted, disjoint set of covered byte ranges;
// adjacent ranges are merged as they arrive so a chunk is complete
// exactly when the set collapses to one range spanning the whole
// chunk.
package chunkasm

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOverlap is returned by Add when a fragment overlaps a range
// already recorded, or falls outside the chunk's bounds. The
// assembler is left unmodified.
var ErrOverlap = errors.New("chunkasm: fragment overlaps existing data or chunk bounds")

// span is a half-open byte range [start, end) already covered by a
// received fragment.
type span struct {
	start, end int
}

// Assembler reassembles one chunk of a known size from fragments
// arriving in any order. The zero value is not usable; construct with
// New.
type Assembler struct {
	data  []byte
	spans []span
}

// New returns an Assembler for a chunk of the given size in bytes.
func New(size int) *Assembler {
	return &Assembler{
		data: make([]byte, size),
	}
}

// Add records a fragment of data starting at offset within the chunk.
// It returns ErrOverlap, leaving the assembler unchanged, if the
// fragment overlaps a previously recorded range or runs past the
// chunk's bounds.
func (a *Assembler) Add(offset int, data []byte) error {
	add := span{start: offset, end: offset + len(data)}

	if add.start < 0 || add.end > len(a.data) {
		return fmt.Errorf("%w: [%d,%d) outside chunk of size %d", ErrOverlap, add.start, add.end, len(a.data))
	}

	// idx is the position of the first span whose start is >= add.start.
	idx := sort.Search(len(a.spans), func(i int) bool {
		return a.spans[i].start >= add.start
	})

	var before, after *span
	if idx > 0 {
		before = &a.spans[idx-1]
	}
	if idx < len(a.spans) {
		after = &a.spans[idx]
	}

	if before != nil && before.end > add.start {
		return fmt.Errorf("%w: [%d,%d) overlaps [%d,%d)", ErrOverlap, add.start, add.end, before.start, before.end)
	}
	if after != nil && add.end > after.start {
		return fmt.Errorf("%w: [%d,%d) overlaps [%d,%d)", ErrOverlap, add.start, add.end, after.start, after.end)
	}

	copy(a.data[add.start:add.end], data)

	mergeBefore := before != nil && before.end == add.start
	mergeAfter := after != nil && add.end == after.start

	switch {
	case mergeBefore && mergeAfter:
		before.end = after.end
		a.spans = append(a.spans[:idx], a.spans[idx+1:]...)
	case mergeBefore:
		before.end = add.end
	case mergeAfter:
		after.start = add.start
	default:
		a.spans = append(a.spans, span{})
		copy(a.spans[idx+1:], a.spans[idx:])
		a.spans[idx] = add
	}

	return nil
}

// IsComplete reports whether every byte of the chunk has been
// covered by some fragment.
func (a *Assembler) IsComplete() bool {
	return len(a.spans) == 1 && a.spans[0].start == 0 && a.spans[0].end == len(a.data)
}

// Covered returns the total number of bytes covered so far, useful
// for progress reporting before the chunk is complete.
func (a *Assembler) Covered() int {
	total := 0
	for _, s := range a.spans {
		total += s.end - s.start
	}
	return total
}

// Size returns the chunk's total size in bytes.
func (a *Assembler) Size() int {
	return len(a.data)
}

// IntoBytes returns the assembled chunk. It panics if the chunk is
// not yet complete: callers must check IsComplete first.
func (a *Assembler) IntoBytes() []byte {
	if !a.IsComplete() {
		panic("chunkasm: IntoBytes called on incomplete assembler")
	}
	return a.data
}
