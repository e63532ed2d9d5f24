package server

import (
	"net"
	"testing"
	"time"

	"github.com/demos-voting/cryptoserver/crypto"
	"github.com/demos-voting/cryptoserver/curve"
	"github.com/demos-voting/cryptoserver/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWithRetry(addr string) (net.Conn, error) {
	var lastErr error
	for i := 0; i < 20; i++ {
		conn, err := net.Dial("tcp4", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	return nil, lastErr
}

func TestParseArgsUnix(t *testing.T) {
	cfg, err := ParseArgs([]string{"-s", "unix", "/tmp/crypto.sock", "-t", "4"})
	require.NoError(t, err)
	assert.Equal(t, Unix, cfg.Family)
	assert.Equal(t, "/tmp/crypto.sock", cfg.Path)
	assert.Equal(t, 4, cfg.Threads)
}

func TestParseArgsIPv4WithAndWithoutHost(t *testing.T) {
	cfg, err := ParseArgs([]string{"-s", "ipv4", "9000", "-t", "2"})
	require.NoError(t, err)
	assert.Equal(t, "", cfg.IP)
	assert.EqualValues(t, 9000, cfg.Port)

	cfg, err = ParseArgs([]string{"-s", "ipv4", "127.0.0.1", "9000", "-t", "2"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.IP)
	assert.EqualValues(t, 9000, cfg.Port)
}

func TestParseArgsMissingRequired(t *testing.T) {
	_, err := ParseArgs([]string{"-t", "4"})
	assert.ErrorIs(t, err, ErrMissingFamily)

	_, err = ParseArgs([]string{"-s", "unix", "/tmp/x"})
	assert.ErrorIs(t, err, ErrMissingThreads)
}

func TestParseArgsRejectsBadThreadCount(t *testing.T) {
	_, err := ParseArgs([]string{"-s", "unix", "/tmp/x", "-t", "0"})
	assert.ErrorIs(t, err, ErrInvalidThreads)
}

func TestCeilSharesSumsToTotalAndFrontLoads(t *testing.T) {
	shares := ceilShares(10, 3)
	sum := 0
	for _, s := range shares {
		sum += s
	}
	assert.Equal(t, 10, sum)
	assert.GreaterOrEqual(t, shares[0], shares[len(shares)-1])
}

func TestEndToEndKeyGenOverLoopback(t *testing.T) {
	cfg := &Config{Family: IPv4, IP: "127.0.0.1", Port: 0, Threads: 2, Timeout: 2 * time.Second}
	srv, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	ln, err := srv.listen()
	require.NoError(t, err)
	srv.listener = ln
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			srv.Pool.AddTask(&connJob{
				conn: conn, timeout: cfg.Timeout, metrics: srv.Metrics, log: srv.Logger,
				audit: srv.Audit, registry: srv.Registry, replay: srv.Replay,
			})
		}
	}()
	defer srv.Pool.Close()
	defer ln.Close()

	conn, err := dialWithRetry(ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := &protocol.Request{Command: protocol.CmdKeyGen, KeyGen: &protocol.KeyGenData{HasCurve: true, Curve: curve.P256}}
	raw, err := protocol.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteFrame(conn, raw, cfg.Timeout))

	respRaw, err := protocol.ReadFrame(conn, cfg.Timeout)
	require.NoError(t, err)
	resp, err := protocol.DecodeResponse(respRaw)
	require.NoError(t, err)
	require.NotNil(t, resp.Key)
	assert.Equal(t, curve.P256, resp.Key.Curve)

	ok, err := crypto.VerifyCom(resp.Key, crypto.Com{}, crypto.Decom{})
	assert.NoError(t, err)
	assert.True(t, ok)
}
