// Package audit implements the fire-and-forget operational event
// stream: one message per completed command, published to Kafka for
// offline analysis (latency trends, error rates, replay detection).
// It is entirely optional and never gates a response to the client
// (spec.md's server holds no per-client state and the wire protocol
// has no room for an audit acknowledgement).
package audit

import (
	"encoding/binary"
)

// Event describes one completed command, independent of its
// cryptographic payload — the audit stream never carries keys,
// ballots or proofs, only metadata about the request.
type Event struct {
	Command    string
	Success    bool
	DurationMs int64
	RemoteAddr string
	Duplicate  bool // set by VerifyCom when replay.Guard has seen this submission before
}

// Encode renders an Event as a small self-contained binary record,
// following protocol/wire.go's length-prefixed-string convention
// rather than the teacher's avro schema: avro codegen cannot be run in
// this environment (see DESIGN.md), and an audit record has none of
// the wire protocol's cross-language consumer requirements that
// justified avro in the teacher's system.
func Encode(e Event) []byte {
	buf := make([]byte, 0, 64+len(e.Command)+len(e.RemoteAddr))
	buf = appendString(buf, e.Command)
	if e.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var dur [8]byte
	binary.BigEndian.PutUint64(dur[:], uint64(e.DurationMs))
	buf = append(buf, dur[:]...)
	buf = appendString(buf, e.RemoteAddr)
	if e.Duplicate {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}
