// Package crypto implements component C of the cryptographic compute
// server: KeyGen, GenBallot (with the Σ-protocol ZK proof of
// "encryption of one of m messages"), AddCom, AddDecom, CompleteZK and
// VerifyCom. It is grounded on the teacher's crypto/ package (same
// curve-capability shape, same sentinel-error style) and on the exact
// algorithms in original_source/demos-crypto/src/crypto.cpp.
package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/demos-voting/cryptoserver/curve"
)

var (
	ErrShapeMismatch   = errors.New("crypto: inputs have differing shapes")
	ErrCurveOutOfRange = errors.New("crypto: curve id out of range")
)

// Key is the data model's Key: {curve, sk, pk}. The secret key is
// returned to the caller and never retained by the server (spec.md §3:
// "the server holds no per-client state").
type Key struct {
	Curve curve.ID
	SK    *big.Int
	PK    *curve.Point
	// H is the second generator used by the ElGamal-style encryption
	// c2 = r*H + m*G. It is derived deterministically from PK so the
	// Key value alone carries everything AddCom/GenBallot/VerifyCom
	// need; original_source derives it the same way (H = pk).
	H *curve.Point
}

// KeyGen implements spec.md §4.3 KeyGen(curve) -> Key.
func KeyGen(id curve.ID) (*Key, error) {
	if !id.Valid() {
		return nil, ErrCurveOutOfRange
	}
	sk, err := curve.RandScalar(id, rand.Reader)
	if err != nil {
		return nil, err
	}
	pk := curve.BaseMul(id, sk)
	return &Key{Curve: id, SK: sk, PK: pk, H: pk}, nil
}

// KeyGenForBallot implements the (N,m)-derived variant of KeyGen:
// curve is selected by curve.SelectForBallot before sampling the key.
func KeyGenForBallot(numOptions, numBallots int) (*Key, error) {
	return KeyGen(curve.SelectForBallot(numOptions, numBallots))
}
