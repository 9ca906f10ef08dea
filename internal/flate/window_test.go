package flate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowNormalizedSnapshotWraps(t *testing.T) {
	w := NewWindow()
	for round := 0; round < 3; round++ {
		for i := 0; i < windowSize; i++ {
			w.Push(byte(i))
		}
		snap := w.NormalizedSnapshot()
		require.Len(t, snap, windowSize)
		for i := 0; i < windowSize; i++ {
			assert.Equal(t, byte(i), snap[i])
		}
	}
}

func TestWindowNormalizedSnapshotOverwrite(t *testing.T) {
	w := NewWindow()
	for i := 0; i < windowSize+1; i++ {
		w.Push(byte(i))
	}
	snap := w.NormalizedSnapshot()
	// the oldest byte (0) has been overwritten; snapshot starts at 1.
	assert.Equal(t, byte(1), snap[0])
	assert.Equal(t, byte(0), snap[windowSize-1])
}

func TestWindowPushFromBuffer(t *testing.T) {
	w := NewWindow()
	for i := 0; i < 8; i++ {
		w.Push(byte(i))
	}
	require.NoError(t, w.PushFromBuffer(5, 3))
	got := w.Head(8)
	assert.Equal(t, []byte{3, 4, 5, 6, 7, 3, 4, 5}, got)
}

func TestWindowPushFromBufferRLE(t *testing.T) {
	w := NewWindow()
	w.Push(3)
	require.NoError(t, w.PushFromBuffer(1, windowSize-1))
	got := w.NormalizedSnapshot()
	for _, b := range got {
		assert.Equal(t, byte(3), b)
	}
}

func TestWindowHead(t *testing.T) {
	w := NewWindow()
	for i := 0; i < 8; i++ {
		w.Push(byte(i))
	}
	got := w.Head(5)
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, got)
}

func TestWindowInvalidDistance(t *testing.T) {
	w := NewWindow()
	w.Push(1)
	err := w.PushFromBuffer(0, 1)
	assert.ErrorIs(t, err, ErrInvalidDistance)

	err = w.PushFromBuffer(windowSize+1, 1)
	assert.ErrorIs(t, err, ErrInvalidDistance)
}

func TestWindowCRCDigestsIndependent(t *testing.T) {
	w := NewWindow()
	for _, b := range []byte("hello") {
		w.Push(b)
	}
	block := w.BlockCRC32()
	assert.Equal(t, uint32(0x3610A686), block)

	for _, b := range []byte(" world") {
		w.Push(b)
	}
	member := w.MemberCRC32()
	assert.NotEqual(t, block, member)
}

func TestWindowCounters(t *testing.T) {
	w := NewWindow()
	for i := 0; i < 10; i++ {
		w.Push(byte(i))
	}
	assert.EqualValues(t, 10, w.TotalBytes())
	assert.EqualValues(t, 10, w.BytesSinceReset())
	// BytesSinceReset resets the counter.
	assert.EqualValues(t, 0, w.BytesSinceReset())
	assert.EqualValues(t, 10, w.TotalBytes())
}
