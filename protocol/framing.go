package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"
)

// MaxFrameLen is spec.md §6's upper bound on a single frame's payload.
const MaxFrameLen = 16777216

var (
	ErrConnectionClosed  = errors.New("protocol: connection closed by peer")
	ErrProtocolRangeError = errors.New("protocol: frame length out of range")
)

// ReadFrame implements component A's recv_exact over a 4-byte
// big-endian length prefix. Grounded on
// original_source/demos-crypto/src/socket_io.cpp's recv_all, whose
// whole purpose is tracking elapsed *monotonic* time across partial
// reads so a kernel per-syscall timeout cannot be defeated by a
// trickling peer. net.Conn.SetReadDeadline gives the same aggregate
// guarantee for free in Go: one deadline set before the loop bounds
// every retry inside io.ReadFull, so there is no separate elapsed-time
// bookkeeping to port — this is the idiomatic Go equivalent spec.md §9
// asks implementations to provide.
func ReadFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer conn.SetReadDeadline(time.Time{})
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 1 || length > MaxFrameLen {
		return nil, ErrProtocolRangeError
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame implements component A's send_exact: a 4-byte big-endian
// length prefix followed by the payload, under the same aggregate
// timeout discipline as ReadFrame.
func WriteFrame(conn net.Conn, payload []byte, timeout time.Duration) error {
	if len(payload) < 1 || len(payload) > MaxFrameLen {
		return ErrProtocolRangeError
	}
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer conn.SetWriteDeadline(time.Time{})
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}
