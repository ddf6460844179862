package reqqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDedup(t *testing.T) {
	s := New()
	s.Add(5)
	s.Add(5)
	s.Add(3)
	assert.Equal(t, 2, s.Len())
}

func TestRemove(t *testing.T) {
	s := New()
	s.Add(1)
	s.Add(2)
	s.Remove(1)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []uint32{2}, s.Take(10))
}

func TestNextWraps(t *testing.T) {
	s := New()
	s.Add(1)
	s.Add(3)
	s.Add(5)

	id, ok := s.Next(3)
	require.True(t, ok)
	assert.Equal(t, uint32(5), id)

	id, ok = s.Next(5)
	require.True(t, ok)
	assert.Equal(t, uint32(1), id)

	id, ok = s.Next(1)
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)

	_, ok = s.Next(0)
	assert.False(t, ok)
}

func TestNextEmpty(t *testing.T) {
	s := New()
	_, ok := s.Next(0)
	assert.False(t, ok)
}

func TestTakeLimitsToN(t *testing.T) {
	s := New()
	for i := uint32(0); i < 10; i++ {
		s.Add(i)
	}
	assert.Len(t, s.Take(3), 3)
	assert.Len(t, s.Take(100), 10)
}

func TestRoundRobinOrderMatchesInsertionIndependentDispatch(t *testing.T) {
	s := New()
	s.Add(10)
	s.Add(2)
	s.Add(7)

	var order []uint32
	last := uint32(0)
	for !s.Empty() {
		id, ok := s.Next(last)
		require.True(t, ok)
		order = append(order, id)
		last = id
	}
	assert.Equal(t, []uint32{2, 7, 10}, order)
}
