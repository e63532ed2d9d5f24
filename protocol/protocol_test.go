package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/demos-voting/cryptoserver/crypto"
	"github.com/demos-voting/cryptoserver/curve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramingRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := []byte("hello ballot")
	go func() {
		_ = WriteFrame(client, payload, time.Second)
	}()

	got, err := ReadFrame(server, time.Second)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsOutOfRangeLength(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_, _ = client.Write([]byte{0, 0, 0, 0}) // length 0
	}()

	_, err := ReadFrame(server, time.Second)
	assert.ErrorIs(t, err, ErrProtocolRangeError)
}

func TestRequestResponseWireRoundTrip(t *testing.T) {
	key, err := crypto.KeyGen(curve.P256)
	require.NoError(t, err)

	req := &Request{
		Command: CmdGenBallot,
		GenBallot: &GenBallotData{
			Key: *key, Options: 3, Ballots: 1, Choice: 1, Number: 1,
		},
	}
	raw, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, CmdGenBallot, got.Command)
	assert.Equal(t, 3, got.GenBallot.Options)
	assert.Equal(t, key.Curve, got.GenBallot.Key.Curve)

	ballots, err := crypto.GenBallotPlain(key, 3, 1, 0, 1)
	require.NoError(t, err)
	res := &Response{Command: CmdGenBallot, BallotData: ballots}
	rawRes, err := EncodeResponse(res)
	require.NoError(t, err)

	gotRes, err := DecodeResponse(rawRes)
	require.NoError(t, err)
	require.Len(t, gotRes.BallotData.Ballots, 1)
	assert.Len(t, gotRes.BallotData.Ballots[0].Com.Cells, 3)
}

func TestDecodeRequestUnknownCommand(t *testing.T) {
	_, err := DecodeRequest([]byte{0xff})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
