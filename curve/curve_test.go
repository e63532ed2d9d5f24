package curve

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	for _, id := range []ID{P192, P224, P256, P384, P521} {
		k, err := RandScalar(id, rand.Reader)
		require.NoError(t, err)

		p := BaseMul(id, k)
		require.True(t, p.IsOnCurve())

		uncompressed := p.Marshal()
		got, err := Unmarshal(id, uncompressed)
		require.NoError(t, err)
		assert.Equal(t, p.X, got.X)
		assert.Equal(t, p.Y, got.Y)

		compressed := p.MarshalCompressed()
		got2, err := Unmarshal(id, compressed)
		require.NoError(t, err)
		assert.Equal(t, p.X, got2.X)
		assert.Equal(t, p.Y, got2.Y)
	}
}

func TestRandScalarWidth(t *testing.T) {
	for id, bits := range RandLen {
		k, err := RandScalar(ID(id), rand.Reader)
		require.NoError(t, err)
		assert.LessOrEqual(t, k.BitLen(), bits)
		assert.True(t, k.Cmp(ID(id).Curve().Params().N) < 0)
	}
}

func TestSelectForBallot(t *testing.T) {
	assert.Equal(t, P192, SelectForBallot(1, 1))
	assert.Equal(t, P521, SelectForBallot(1000, 100000))
}

func TestPointFromXRoundTrip(t *testing.T) {
	for _, id := range []ID{P192, P224, P256, P384, P521} {
		k, err := RandScalar(id, rand.Reader)
		require.NoError(t, err)

		p := BaseMul(id, k)
		got, err := PointFromX(id, p.X, p.Y.Bit(0) == 1)
		require.NoError(t, err)
		assert.Equal(t, p.X, got.X)
		assert.Equal(t, p.Y, got.Y)
	}
}

func TestScalarEncodeRoundTrip(t *testing.T) {
	v := big.NewInt(123456789)
	s := EncodeScalar(v)
	got, err := DecodeScalar(s)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(got))
}
