// Package curve is the curve capability described in component B of the
// cryptographic compute server: NIST P-192/224/256/384/521 arithmetic,
// scalar sampling, and point (de)serialization. It is grounded on the
// teacher's crypto/curve.go, generalized from a single hardcoded P-256
// to the five curves the ballot primitives need, and on the constant
// tables in original_source/demos-crypto/src/crypto.cpp.
package curve

import (
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"io"
	"math"
	"math/big"
)

// ID identifies one of the five NIST curves the server supports.
type ID int

const (
	P192 ID = iota
	P224
	P256
	P384
	P521
)

var (
	ErrUnspecifiedCurve = errors.New("curve: must specify a curve id")
	ErrCurveOutOfRange  = errors.New("curve: id out of range")
	ErrInvalidPoint     = errors.New("curve: marshaled point was invalid")
	ErrPointOffCurve    = errors.New("curve: point is not on curve")
)

// RandLen is the scalar sample length in bits for each curve, in the
// same order as original_source's RandLen[] table.
var RandLen = [5]int{191, 223, 255, 383, 520}

func (id ID) String() string {
	switch id {
	case P192:
		return "P192"
	case P224:
		return "P224"
	case P256:
		return "P256"
	case P384:
		return "P384"
	case P521:
		return "P521"
	default:
		return "unknown"
	}
}

func (id ID) Valid() bool {
	return id >= P192 && id <= P521
}

// p192 is built by hand because crypto/elliptic does not provide it.
var p192 = func() *elliptic.CurveParams {
	c := &elliptic.CurveParams{Name: "P-192"}
	c.P, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffeffffffffffffffff", 16)
	c.N, _ = new(big.Int).SetString("ffffffffffffffffffffffff99def836146bc9b1b4d22831", 16)
	c.B, _ = new(big.Int).SetString("64210519e59c80e70fa7e9ab72243049feb8deecc146b9b1", 16)
	c.Gx, _ = new(big.Int).SetString("188da80eb03090f67cbf20eb43a18800f4ff0afd82ff1012", 16)
	c.Gy, _ = new(big.Int).SetString("07192b95ffc8da78631011ed6b24cdd573f977a11e794811", 16)
	c.BitSize = 192
	return c
}()

// Curve returns the stdlib/hand-built elliptic.Curve for id.
func (id ID) Curve() elliptic.Curve {
	switch id {
	case P192:
		return p192
	case P224:
		return elliptic.P224()
	case P256:
		return elliptic.P256()
	case P384:
		return elliptic.P384()
	case P521:
		return elliptic.P521()
	default:
		return nil
	}
}

// SelectForBallot implements original_source's KeyGen curve-selection
// rule: the smallest curve whose RandLen exceeds
// numOptions * log2(1 + numBallots).
func SelectForBallot(numOptions, numBallots int) ID {
	maxlen := float64(numOptions) * math.Log2(1.0+float64(numBallots))
	switch {
	case maxlen < float64(RandLen[P192]):
		return P192
	case maxlen < float64(RandLen[P224]):
		return P224
	case maxlen < float64(RandLen[P256]):
		return P256
	case maxlen < float64(RandLen[P384]):
		return P384
	default:
		return P521
	}
}

// Point is a curve point, mirroring the teacher's crypto.Point but
// keyed by ID rather than embedding elliptic.Curve directly at the
// call sites that need to round-trip over the wire.
type Point struct {
	ID   ID
	X, Y *big.Int
}

func (p *Point) IsOnCurve() bool {
	return p.ID.Curve().IsOnCurve(p.X, p.Y)
}

// Add returns p + q on the shared curve.
func (p *Point) Add(q *Point) *Point {
	x, y := p.ID.Curve().Add(p.X, p.Y, q.X, q.Y)
	return &Point{ID: p.ID, X: x, Y: y}
}

// Mul returns k*p.
func (p *Point) Mul(k *big.Int) *Point {
	x, y := p.ID.Curve().ScalarMult(p.X, p.Y, k.Bytes())
	return &Point{ID: p.ID, X: x, Y: y}
}

// BaseMul returns k*G on curve id.
func BaseMul(id ID, k *big.Int) *Point {
	x, y := id.Curve().ScalarBaseMult(k.Bytes())
	return &Point{ID: id, X: x, Y: y}
}

// Marshal produces an uncompressed SEC1 2.3.3 encoding.
func (p *Point) Marshal() []byte {
	return elliptic.Marshal(p.ID.Curve(), p.X, p.Y)
}

// MarshalCompressed produces a SEC1 2.3.3 compressed encoding: a
// leading 0x02/0x03 parity byte followed by x.
func (p *Point) MarshalCompressed() []byte {
	byteLen := (p.ID.Curve().Params().BitSize + 7) >> 3
	buf := make([]byte, 1+byteLen)
	if isOdd(p.Y) {
		buf[0] = 0x03
	} else {
		buf[0] = 0x02
	}
	xBytes := p.X.Bytes()
	copy(buf[1+byteLen-len(xBytes):], xBytes)
	return buf
}

// PointFromX reconstructs a point from its x-coordinate and the
// parity of y, assuming a = -3 (true of all five NIST curves here).
// This is the wire contract's native point representation (spec.md
// §4.2/§6, mirroring original_source's GG{x,y}: a transmitted
// x-coordinate plus a parity bit rather than a full SEC1 blob).
func PointFromX(id ID, x *big.Int, oddY bool) (*Point, error) {
	if !id.Valid() {
		return nil, ErrUnspecifiedCurve
	}
	c := id.Curve()
	fieldOrder := c.Params().P
	if x.Sign() < 0 || x.Cmp(fieldOrder) != -1 {
		return nil, ErrInvalidPoint
	}

	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	threeX := new(big.Int).Lsh(x, 1)
	threeX.Add(threeX, x)
	x3.Sub(x3, threeX)
	x3.Add(x3, c.Params().B)
	y := x3.ModSqrt(x3, fieldOrder)
	if y == nil {
		return nil, ErrInvalidPoint
	}
	if oddY != isOdd(y) {
		y.Sub(fieldOrder, y)
	}
	if !c.IsOnCurve(x, y) {
		return nil, ErrInvalidPoint
	}
	return &Point{ID: id, X: x, Y: y}, nil
}

// Unmarshal interprets both the compressed and uncompressed SEC1 2.3.4
// forms, assuming a = -3 (true of all five NIST curves here). Ported
// from the teacher's crypto.Point.Unmarshal, generalized over ID. No
// other package calls it (replay fingerprinting uses Marshal only); the
// wire codec uses PointFromX, per spec.md §4.2's base-64
// x-coordinate-plus-parity representation rather than a raw SEC1 blob.
func Unmarshal(id ID, data []byte) (*Point, error) {
	if !id.Valid() {
		return nil, ErrUnspecifiedCurve
	}
	c := id.Curve()
	byteLen := (c.Params().BitSize + 7) >> 3

	if len(data) == byteLen+1 {
		if data[0] != 0x02 && data[0] != 0x03 {
			return nil, ErrInvalidPoint
		}
		x := new(big.Int).SetBytes(data[1 : 1+byteLen])
		return PointFromX(id, x, data[0] == 0x03)
	}

	if len(data) == 2*byteLen+1 && data[0] == 0x04 {
		x, y := elliptic.Unmarshal(c, data)
		if x == nil {
			return nil, ErrInvalidPoint
		}
		return &Point{ID: id, X: x, Y: y}, nil
	}

	return nil, ErrInvalidPoint
}

func isOdd(x *big.Int) bool {
	return x.Bit(0) == 1
}

// RandScalar samples a uniform scalar of RandLen[id] bits via rejection
// sampling against the curve's group order. Ported from the teacher's
// randScalar, generalized to use RandLen instead of N.BitLen() so the
// sampled width matches original_source's per-curve table exactly.
func RandScalar(id ID, rnd io.Reader) (*big.Int, error) {
	N := id.Curve().Params().N
	bitLen := RandLen[id]
	byteLen := (bitLen + 7) >> 3
	buf := make([]byte, byteLen)
	var mask = []byte{0xff, 0x1, 0x3, 0x7, 0xf, 0x1f, 0x3f, 0x7f}

	for {
		if _, err := io.ReadFull(rnd, buf); err != nil {
			return nil, err
		}
		buf[0] &= mask[bitLen%8]
		v := new(big.Int).SetBytes(buf)
		if v.Cmp(N) >= 0 {
			continue
		}
		return v, nil
	}
}

// EncodeScalar renders a scalar using the wire contract's base-64
// digit representation (spec.md §4.2).
func EncodeScalar(s *big.Int) string {
	return base64.StdEncoding.EncodeToString(s.Bytes())
}

// DecodeScalar is the inverse of EncodeScalar.
func DecodeScalar(s string) (*big.Int, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// ModQ reduces v modulo the curve's group order.
func ModQ(id ID, v *big.Int) *big.Int {
	return new(big.Int).Mod(v, id.Curve().Params().N)
}
