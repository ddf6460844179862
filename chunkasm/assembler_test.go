package chunkasm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblerBasic(t *testing.T) {
	a := New(12)
	assert.False(t, a.IsComplete())

	require.NoError(t, a.Add(0, []byte("HELLO")))
	assert.False(t, a.IsComplete())
	assert.Equal(t, 5, a.Covered())

	require.NoError(t, a.Add(5, []byte(" WORLD")))
	assert.False(t, a.IsComplete())

	require.NoError(t, a.Add(11, []byte("!")))
	require.True(t, a.IsComplete())
	assert.Equal(t, "HELLO WORLD!", string(a.IntoBytes()))
}

func TestAssemblerOutOfOrder(t *testing.T) {
	a := New(12)
	require.NoError(t, a.Add(11, []byte("!")))
	require.NoError(t, a.Add(5, []byte(" WORLD")))
	require.NoError(t, a.Add(0, []byte("HELLO")))
	require.True(t, a.IsComplete())
	assert.Equal(t, "HELLO WORLD!", string(a.IntoBytes()))
}

func TestAssemblerOverlapRejected(t *testing.T) {
	a := New(12)
	require.NoError(t, a.Add(0, []byte("HELLO")))

	err := a.Add(3, []byte("xx"))
	assert.ErrorIs(t, err, ErrOverlap)
	assert.Equal(t, 5, a.Covered())
}

func TestAssemblerOutOfBoundsRejected(t *testing.T) {
	a := New(12)
	err := a.Add(10, []byte("abcd"))
	assert.ErrorIs(t, err, ErrOverlap)
}

func TestAssemblerDuplicateFragmentRejected(t *testing.T) {
	a := New(12)
	require.NoError(t, a.Add(0, []byte("HELLO")))
	err := a.Add(0, []byte("HELLO"))
	assert.ErrorIs(t, err, ErrOverlap)
}

func TestAssemblerMergeAdjacentBothSides(t *testing.T) {
	a := New(10)
	require.NoError(t, a.Add(0, []byte("aa")))
	require.NoError(t, a.Add(8, []byte("ii")))
	require.NoError(t, a.Add(2, []byte("bbbbbb")))
	require.True(t, a.IsComplete())
}

func TestAssemblerRandomFragmentOrder(t *testing.T) {
	const size = 997
	want := make([]byte, size)
	for i := range want {
		want[i] = byte(i % 251)
	}

	type frag struct{ start, end int }
	var frags []frag
	for start := 0; start < size; {
		end := start + 1 + rand.Intn(17)
		if end > size {
			end = size
		}
		frags = append(frags, frag{start, end})
		start = end
	}

	rand.Shuffle(len(frags), func(i, j int) { frags[i], frags[j] = frags[j], frags[i] })

	a := New(size)
	for _, f := range frags {
		require.NoError(t, a.Add(f.start, want[f.start:f.end]))
	}
	require.True(t, a.IsComplete())
	assert.Equal(t, want, a.IntoBytes())
}

func TestAssemblerIntoBytesPanicsIfIncomplete(t *testing.T) {
	a := New(10)
	assert.Panics(t, func() {
		a.IntoBytes()
	})
}
