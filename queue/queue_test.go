package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsZeroCapacity(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = New(-3)
	require.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestFixed_FIFOOrderFullRoundTrip(t *testing.T) {
	const capacity = 64
	q, err := New(capacity)
	require.NoError(t, err)

	for i := 0; i < capacity; i++ {
		require.False(t, q.Full())
		q.Push(byte(i * 3))
	}
	require.True(t, q.Full())
	require.Equal(t, capacity, q.Len())
	require.Equal(t, 0, q.Available())

	for i := 0; i < capacity; i++ {
		require.False(t, q.Empty())
		require.Equal(t, byte(i*3), q.Front())
		q.Pop()
	}
	require.True(t, q.Empty())
	require.Equal(t, capacity, q.Available())
}

func TestFixed_WrapsAroundStorage(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)

	// Fill, drain half, refill: head/tail must wrap modulo capacity.
	for _, b := range []byte{1, 2, 3, 4} {
		q.Push(b)
	}
	q.Pop()
	q.Pop()
	q.Push(5)
	q.Push(6)

	var got []byte
	for !q.Empty() {
		got = append(got, q.Front())
		q.Pop()
	}
	require.Equal(t, []byte{3, 4, 5, 6}, got)
}

func TestFixed_SizeInvariantUnderMixedOps(t *testing.T) {
	q, err := New(8)
	require.NoError(t, err)

	ops := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < round%8; i++ {
			if q.Full() {
				break
			}
			q.Push(byte(ops))
			ops++
		}
		for i := 0; i < round%5; i++ {
			if q.Empty() {
				break
			}
			q.Pop()
		}
		require.GreaterOrEqual(t, q.Len(), 0)
		require.LessOrEqual(t, q.Len(), q.Cap())
		require.Equal(t, q.Cap()-q.Len(), q.Available())
		require.Equal(t, q.Len() == 0, q.Empty())
		require.Equal(t, q.Len() == q.Cap(), q.Full())
	}
}

func TestFixed_Clear(t *testing.T) {
	q, err := New(3)
	require.NoError(t, err)
	q.Push('a')
	q.Push('b')

	q.Clear()
	require.True(t, q.Empty())
	require.Equal(t, 0, q.Len())

	// Usable again after clear.
	q.Push('c')
	require.Equal(t, byte('c'), q.Front())
}

func TestFixed_ContractViolationsPanic(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)

	require.Panics(t, func() { q.Pop() })
	require.Panics(t, func() { q.Front() })

	q.Push(0xFF)
	require.Panics(t, func() { q.Push(0x00) })
}
