package crypto

import (
	"math/big"
	"testing"

	"github.com/demos-voting/cryptoserver/curve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyGenValidity(t *testing.T) {
	key, err := KeyGen(curve.P256)
	require.NoError(t, err)
	pk := curve.BaseMul(curve.P256, key.SK)
	assert.Equal(t, pk.X, key.PK.X)
	assert.Equal(t, pk.Y, key.PK.Y)
}

func TestGenBallotPlainEncryptionCorrectness(t *testing.T) {
	key, err := KeyGen(curve.P192)
	require.NoError(t, err)

	data, err := GenBallotPlain(key, 4, 2, 0, 1)
	require.NoError(t, err)
	require.Len(t, data.Ballots, 1)

	ballot := data.Ballots[0]
	require.Len(t, ballot.Com.Cells, 4)
	chosen := 0
	for i := range ballot.Com.Cells {
		d := ballot.Decom.Cells[i]
		if d.M.Sign() != 0 {
			chosen++
			assert.Equal(t, 2, i, "expected slot 2 to be the chosen one")
		}
	}
	assert.Equal(t, 1, chosen)

	ok, err := VerifyCom(key, ballot.Com, ballot.Decom)
	require.NoError(t, err)
	assert.True(t, ok, "P6/P9: every Com/Decom pair GenBallot emits must verify")
}

func TestAddComAndAddDecomHomomorphism(t *testing.T) {
	key, err := KeyGen(curve.P256)
	require.NoError(t, err)

	d1, err := GenBallotPlain(key, 3, 1, 0, 1)
	require.NoError(t, err)
	d2, err := GenBallotPlain(key, 3, 0, 0, 1)
	require.NoError(t, err)

	sumCom, err := AddCom([]Com{d1.Ballots[0].Com, d2.Ballots[0].Com})
	require.NoError(t, err)
	sumDecom, err := AddDecom([]Decom{d1.Ballots[0].Decom, d2.Ballots[0].Decom}, key.Curve.Curve().Params().N)
	require.NoError(t, err)

	ok, err := VerifyCom(key, *sumCom, *sumDecom)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyComRejectsTampering(t *testing.T) {
	key, err := KeyGen(curve.P256)
	require.NoError(t, err)
	data, err := GenBallotPlain(key, 2, 0, 0, 1)
	require.NoError(t, err)

	ballot := data.Ballots[0]
	ok, err := VerifyCom(key, ballot.Com, ballot.Decom)
	require.NoError(t, err)
	assert.True(t, ok)

	tampered := Decom{Cells: append([]DecomCell(nil), ballot.Decom.Cells...)}
	tampered.Cells[0].M = new(big.Int).Add(tampered.Cells[0].M, big.NewInt(1))
	ok, err = VerifyCom(key, ballot.Com, tampered)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompleteZKRoundTrip(t *testing.T) {
	key, err := KeyGen(curve.P224)
	require.NoError(t, err)

	data, err := GenBallotZK(key, 4, 10, 1)
	require.NoError(t, err)
	ballot := data.Ballots[0]
	require.Len(t, ballot.ZK1, 4)
	require.Len(t, ballot.ZKState, 4)

	coins := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	for i := range ballot.ZKState {
		zk2 := CompleteZK(key, &ballot.ZKState[i], coins)
		require.Equal(t, len(ballot.ZK1[i].Bits), len(zk2.Bits))
	}
}
