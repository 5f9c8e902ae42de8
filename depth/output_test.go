package depth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NV7150/ImOTAR-sub000/errors"
)

func TestNewOutputBuffer_RejectsBadDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 4}, {4, 0}, {-1, 2}, {0, 0}} {
		_, err := NewOutputBuffer(dims[0], dims[1])
		require.Error(t, err)
		assert.True(t, errors.IsInvalidConfigError(err))
	}
}

func TestOutputBuffer_StoreBumpsGeneration(t *testing.T) {
	out, err := NewOutputBuffer(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Width())
	assert.Equal(t, 2, out.Height())
	assert.Equal(t, 6, out.Len())
	assert.Zero(t, out.Generation())

	assert.True(t, out.store(plane(6, 1.5)))
	assert.Equal(t, uint64(1), out.Generation())
	assert.Equal(t, float32(1.5), out.At(2, 1))

	assert.True(t, out.store(plane(6, 2.5)))
	assert.Equal(t, uint64(2), out.Generation())
	assert.Equal(t, float32(2.5), out.At(0, 0))
}

func TestOutputBuffer_StoreRejectsLengthMismatch(t *testing.T) {
	out, err := NewOutputBuffer(2, 2)
	require.NoError(t, err)
	require.True(t, out.store(plane(4, 7)))

	assert.False(t, out.store(plane(5, 9)))
	assert.Equal(t, uint64(1), out.Generation())
	assert.Equal(t, float32(7), out.At(1, 1), "rejected store must not touch pixels")
}

func TestOutputBuffer_FillDoesNotBumpGeneration(t *testing.T) {
	out, err := NewOutputBuffer(2, 2)
	require.NoError(t, err)
	require.True(t, out.store(plane(4, 4)))

	out.Fill(-1)
	assert.Equal(t, uint64(1), out.Generation(), "a sentinel is not a result")
	for _, v := range out.Snapshot() {
		assert.Equal(t, float32(-1), v)
	}
}

func TestOutputBuffer_SnapshotIsACopy(t *testing.T) {
	out, err := NewOutputBuffer(2, 2)
	require.NoError(t, err)
	require.True(t, out.store(plane(4, 2)))

	snap := out.Snapshot()
	snap[0] = 99
	assert.Equal(t, float32(2), out.At(0, 0))
}
