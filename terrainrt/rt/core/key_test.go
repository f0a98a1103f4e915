package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkKey_Format(t *testing.T) {
	assert.Equal(t, ChunkKey("32_-96"), ChunkCoord{X: 32, Z: -96}.Key())
	assert.Equal(t, ChunkKey("0_0"), ChunkCoord{}.Key())
	assert.Equal(t, [2]int32{32, -96}, ChunkCoord{X: 32, Z: -96}.Anchor())
}

func TestParseKey_RoundTrip(t *testing.T) {
	coords := []ChunkCoord{
		{0, 0}, {32, -96}, {-32, 0}, {math.MaxInt32, math.MinInt32},
	}
	for _, c := range coords {
		got, err := ParseKey(c.Key())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestParseKey_Malformed(t *testing.T) {
	bad := []ChunkKey{"", "0", "_", "a_b", "1_2_3", "+1_2", "-0_0", "01_2", "1 _2", "99999999999_0"}
	for _, k := range bad {
		_, err := ParseKey(k)
		if assert.Error(t, err, "key %q", k) {
			assert.True(t, errors.Is(err, ErrMalformedKey), "key %q: %v", k, err)
		}
	}
}

func TestSnapPosition_FloorsPerAxis(t *testing.T) {
	assert.Equal(t, ChunkCoord{X: 0, Z: 0}, SnapPosition(0.5, 31.9, 32))
	assert.Equal(t, ChunkCoord{X: -32, Z: 32}, SnapPosition(-0.1, 32, 32))
	assert.Equal(t, ChunkCoord{X: -64, Z: -32}, SnapPosition(-33, -1, 32))
}

func TestKeyOfPosition_NegativeZero(t *testing.T) {
	negZero := math.Copysign(0, -1)
	assert.Equal(t, KeyOfPosition(0.0, 5.0, 32), KeyOfPosition(negZero, 5.0, 32))
	assert.Equal(t, ChunkKey("0_0"), KeyOfPosition(negZero, negZero, 32))
}

func TestSnapPosition_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, ChunkKey("2147483616_0"), KeyOfPosition(3e9, 0, 32))
	assert.Equal(t, ChunkKey("-2147483648_0"), KeyOfPosition(-3e9, 0, 32))
	assert.Equal(t, ChunkCoord{}, SnapPosition(math.NaN(), 0, 32))
	assert.Equal(t, ChunkCoord{X: 2147483616, Z: -2147483648}, SnapPosition(math.Inf(1), math.Inf(-1), 32))

	edge := ChunkCoord{X: 2147483616, Z: -2147483648}
	assert.Equal(t, edge, edge.Offset(1, -1, 32))
	assert.Equal(t, ChunkCoord{X: 2147483584, Z: -2147483616}, edge.Offset(-1, 1, 32))

	c, err := ParseKey(KeyOfPosition(3e9, -3e9, 32))
	require.NoError(t, err)
	assert.Equal(t, edge, c)
}
