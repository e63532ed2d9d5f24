// Package protocol implements components A and F: the framed stream
// I/O and the request/response schema of the cryptographic compute
// server. Grounded on the teacher's format.go tagged-request shape and
// on other_examples/jchv-curvecp's framed server/conn for the I/O
// half; field semantics are ported from
// original_source/demos-crypto/src/protobuf/crypto.proto via
// crypto.hpp's CryptoRequest_*/CryptoResponse_* types.
package protocol

import (
	"errors"

	"github.com/demos-voting/cryptoserver/crypto"
	"github.com/demos-voting/cryptoserver/curve"
)

// Command is the tag of the six-member union in spec.md §4.6.
type Command uint8

const (
	CmdKeyGen Command = iota + 1
	CmdGenBallot
	CmdAddCom
	CmdAddDecom
	CmdCompleteZK
	CmdVerifyCom
)

var (
	ErrUnknownCommand = errors.New("protocol: unknown command")
	ErrSchemaDecode   = errors.New("protocol: malformed payload")
)

func (c Command) String() string {
	switch c {
	case CmdKeyGen:
		return "KeyGen"
	case CmdGenBallot:
		return "GenBallot"
	case CmdAddCom:
		return "AddCom"
	case CmdAddDecom:
		return "AddDecom"
	case CmdCompleteZK:
		return "CompleteZK"
	case CmdVerifyCom:
		return "VerifyCom"
	default:
		return "Unknown"
	}
}

// KeyGenData carries either an explicit curve id or (N, m) for
// derived curve selection, per spec.md §4.3's two KeyGen variants.
type KeyGenData struct {
	HasCurve bool
	Curve    curve.ID
	Ballots  int
	Options  int
}

// GenBallotData carries the parameters of GenBallot. Number is the
// total ballot count a request asks for; the thread pool fans this
// out across workers (spec.md §4.3/§4.4).
type GenBallotData struct {
	Key       crypto.Key
	Options   int
	Ballots   int
	Blank     int
	Choice    int
	WithZK    bool
	Number    int
}

// AddComData/AddDecomData carry the list of commitments/decommitments
// to combine (spec.md §4.3 AddCom/AddDecom).
type AddComData struct {
	Coms []crypto.Com
}

type AddDecomData struct {
	Key    crypto.Key
	Decoms []crypto.Decom
}

// CompleteZKData carries one saved ZKState per encryption and the
// client-supplied coins challenge material (spec.md §4.3 CompleteZK).
type CompleteZKData struct {
	Key   crypto.Key
	State []crypto.ZKState
	Coins []byte
}

// VerifyComData carries the (Com, Decom) pair to check.
type VerifyComData struct {
	Key   crypto.Key
	Com   crypto.Com
	Decom crypto.Decom
}

// Request is the tagged union of spec.md §4.6: exactly one of the
// payload fields is populated, selected by Command.
type Request struct {
	Command Command

	KeyGen     *KeyGenData
	GenBallot  *GenBallotData
	AddCom     *AddComData
	AddDecom   *AddDecomData
	CompleteZK *CompleteZKData
	VerifyCom  *VerifyComData
}

// Response is the matching tagged union of result payloads.
type Response struct {
	Command Command

	Key        *crypto.Key
	BallotData *crypto.BallotData
	Com        *crypto.Com
	Decom      *crypto.Decom
	ZK2        []crypto.ZK2
	Check      bool
}
