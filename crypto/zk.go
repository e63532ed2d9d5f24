package crypto

import (
	"crypto/rand"
	"math"
	"math/big"

	"github.com/demos-voting/cryptoserver/curve"
	"golang.org/x/crypto/sha3"
)

// ZK1BitProof is the prover's first message for one bit-index of the
// Σ-protocol "encryption of one of m messages" proof: ten points
// committing to the auxiliary randomness used for that bit, per
// spec.md §3.
type ZK1BitProof struct {
	B1, B2, T1, T2, Y1, Y2, W1, W2, D1, D2 *curve.Point
}

// ZK1 is the full first message for one encrypted slot: one
// ZK1BitProof per bit-index, L = ceil(log2(numOptions)) of them.
type ZK1 struct {
	Bits []ZK1BitProof
}

// ZKStateBit is the prover's private state for one bit-index: the
// nine scalars (t, z, y, r, b, w, f, a, r') of spec.md §3.
type ZKStateBit struct {
	T, Z, Y, R, W, F, A, Rp *big.Int
	B                       bool
}

// ZKState is the full private state accompanying a ZK1, required
// later to answer a challenge via CompleteZK.
type ZKState struct {
	Bits []ZKStateBit
}

// ZK2Bit is the prover's response for one bit-index: five scalars
// (t', z', y', w', f').
type ZK2Bit struct {
	T, Z, Y, W, F *big.Int
}

// ZK2 is the full second message produced by CompleteZK.
type ZK2 struct {
	Bits []ZK2Bit
}

func bitLength(numOptions int) int {
	if numOptions <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(numOptions))))
}

func mulModQ(a, b, q *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Mul(a, b), q)
}

func addModQ(a, b, q *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Add(a, b), q)
}

func subModQ(a, b, q *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Sub(a, b), q)
}

// genZKSlot builds the Cell/DecomCell/ZK1/ZKState quadruple for slot j
// of a ZK-variant ballot, ported verbatim from original_source's
// GenBallot ZK block (crypto.cpp lines ~160-380). L is
// ceil(log2(numOptions)), shared across every slot of the ballot.
func genZKSlot(key *Key, q, n *big.Int, j, L int) (*Cell, *DecomCell, *ZK1, *ZKState, error) {
	g := curve.BaseMul
	t := make([]*big.Int, L)
	z := make([]*big.Int, L)
	y := make([]*big.Int, L)
	r := make([]*big.Int, L)
	w := make([]*big.Int, L)
	f := make([]*big.Int, L)
	rp := make([]*big.Int, L)

	rTotal := big.NewInt(1)
	for ctr := 0; ctr < L; ctr++ {
		var err error
		if t[ctr], err = curve.RandScalar(key.Curve, rand.Reader); err != nil {
			return nil, nil, nil, nil, err
		}
		if z[ctr], err = curve.RandScalar(key.Curve, rand.Reader); err != nil {
			return nil, nil, nil, nil, err
		}
		if y[ctr], err = curve.RandScalar(key.Curve, rand.Reader); err != nil {
			return nil, nil, nil, nil, err
		}
		if r[ctr], err = curve.RandScalar(key.Curve, rand.Reader); err != nil {
			return nil, nil, nil, nil, err
		}
		if w[ctr], err = curve.RandScalar(key.Curve, rand.Reader); err != nil {
			return nil, nil, nil, nil, err
		}
		if f[ctr], err = curve.RandScalar(key.Curve, rand.Reader); err != nil {
			return nil, nil, nil, nil, err
		}
		nPow := powModQ(n, pow2(ctr), q)
		rp[ctr] = mulModQ(r[ctr], subModQ(nPow, big.NewInt(1), q), q)
		rTotal = mulModQ(rTotal, rp[ctr], q)
	}

	nJ := powModQ(n, int64(j), q)
	c1 := g(key.Curve, rTotal)
	c2 := g(key.Curve, nJ).Add(key.H.Mul(rTotal))

	// bit decomposition of j and a_ctr = N^(2^ctr) if bit set else 1
	b := make([]bool, L)
	a := make([]*big.Int, L)
	iy := j
	for ctr := 0; ctr < L; ctr++ {
		b[ctr] = iy%2 == 1
		iy /= 2
		if b[ctr] {
			a[ctr] = powModQ(n, pow2(ctr), q)
		} else {
			a[ctr] = big.NewInt(1)
		}
	}

	bits := make([]ZK1BitProof, L)
	for ctr := 0; ctr < L; ctr++ {
		var b1, b2, t1, t2, y1, y2, w1, w2 *curve.Point
		b1 = g(key.Curve, r[ctr])
		if b[ctr] {
			b2 = g(key.Curve, big.NewInt(1)).Add(key.H.Mul(r[ctr]))
		} else {
			b2 = key.H.Mul(r[ctr])
		}
		t1 = g(key.Curve, z[ctr])
		t2 = g(key.Curve, t[ctr]).Add(key.H.Mul(z[ctr]))
		y1 = g(key.Curve, y[ctr])
		if !b[ctr] {
			y2 = g(key.Curve, t[ctr]).Add(key.H.Mul(y[ctr]))
		} else {
			y2 = key.H.Mul(y[ctr])
		}
		w1 = g(key.Curve, f[ctr])
		w2 = g(key.Curve, w[ctr]).Add(key.H.Mul(f[ctr]))
		bits[ctr] = ZK1BitProof{B1: b1, B2: b2, T1: t1, T2: t2, Y1: y1, Y2: y2, W1: w1, W2: w2}
	}

	// beta/gamma elementary-symmetric-like combination, ported
	// verbatim from original_source (arrays sized L+1).
	beta := make([]*big.Int, L+1)
	gamma := make([]*big.Int, L+1)
	for ctr := 0; ctr < L; ctr++ {
		if ctr == 0 {
			beta[1] = new(big.Int).Set(a[0])
			beta[0] = new(big.Int).Set(w[0])
			gamma[1] = new(big.Int).Set(rp[0])
			gamma[0] = new(big.Int).Set(f[0])
			continue
		}
		temp1 := new(big.Int).Set(beta[0])
		temp2 := new(big.Int).Set(gamma[0])
		beta[ctr+1] = mulModQ(a[ctr], beta[ctr], q)
		beta[0] = mulModQ(beta[0], w[ctr], q)
		gamma[ctr+1] = mulModQ(rp[ctr], gamma[ctr], q)
		gamma[0] = mulModQ(gamma[0], f[ctr], q)
		for k := 1; k <= ctr; k++ {
			temp3 := new(big.Int).Set(beta[k])
			temp4 := new(big.Int).Set(gamma[k])
			beta[k] = addModQ(mulModQ(beta[k], w[ctr], q), mulModQ(temp1, a[ctr], q), q)
			gamma[k] = addModQ(mulModQ(gamma[k], f[ctr], q), mulModQ(temp2, rp[ctr], q), q)
			temp1 = temp3
			temp2 = temp4
		}
	}

	for ctr := 0; ctr < L; ctr++ {
		bits[ctr].D1 = g(key.Curve, gamma[ctr])
		bits[ctr].D2 = g(key.Curve, beta[ctr]).Add(key.H.Mul(gamma[ctr]))
	}

	stateBits := make([]ZKStateBit, L)
	for ctr := 0; ctr < L; ctr++ {
		stateBits[ctr] = ZKStateBit{
			T: t[ctr], Z: z[ctr], Y: y[ctr], R: r[ctr],
			B: b[ctr], W: w[ctr], F: f[ctr], A: a[ctr], Rp: rp[ctr],
		}
	}

	return &Cell{C1: c1, C2: c2}, &DecomCell{R: rTotal, M: nJ}, &ZK1{Bits: bits}, &ZKState{Bits: stateBits}, nil
}

// challengeFromCoins implements original_source's CompleteZK
// challenge derivation exactly: the first 54 ASCII hex characters of
// the client-supplied coins field, parsed base-16 (crypto.cpp sets
// mip->IOBASE=16 and reads 2*27 hex digits). This is narrower than
// every other scalar on the wire (base-64) and loses entropy for
// curves wider than P-224; spec.md §9 flags this as a deliberate,
// documented weakness rather than something to silently "fix". An
// invalid (non-hex) prefix yields a zero challenge rather than an
// error, matching Miracl's behavior of leaving an unset Big at zero.
func challengeFromCoins(coins []byte) *big.Int {
	const truncLen = 54
	if len(coins) > truncLen {
		coins = coins[:truncLen]
	}
	v, ok := new(big.Int).SetString(string(coins), 16)
	if !ok {
		return new(big.Int)
	}
	return v
}

// ExpandChallenge derives n sub-challenges, one per encryption, from a
// single client-supplied coins field. CompleteZK does not call it:
// CompleteZK derives its challenge with challengeFromCoins, and the
// server answers every encryption of a CompleteZK request with that
// same challenge. Grounded on the
// teacher's crypto/batch.go ComputeComposites, which uses SHAKE256 the
// same way to expand one seed into many combining coefficients.
func ExpandChallenge(coins []byte, n int, q *big.Int) []*big.Int {
	seed := challengeFromCoins(coins).Bytes()
	prng := sha3.NewShake256()
	prng.Write(seed)
	out := make([]*big.Int, n)
	buf := make([]byte, (q.BitLen()+7)/8+8)
	for i := range out {
		prng.Read(buf)
		out[i] = new(big.Int).Mod(new(big.Int).SetBytes(buf), q)
	}
	return out
}

// CompleteZK implements spec.md §4.3 CompleteZK: given the challenge
// derived from coins and the ZKState saved from GenBallot, compute the
// prover's second message. It does not reopen ZK1; it consumes only
// ZKState, per spec.md.
func CompleteZK(key *Key, state *ZKState, coins []byte) *ZK2 {
	q := key.Curve.Curve().Params().N
	ch := challengeFromCoins(coins)
	bits := make([]ZK2Bit, len(state.Bits))
	for i, s := range state.Bits {
		var tPrime *big.Int
		if !s.B {
			tPrime = new(big.Int).Set(s.T)
		} else {
			tPrime = addModQ(ch, s.T, q)
		}
		zPrime := addModQ(mulModQ(s.R, ch, q), s.Z, q)
		yPrime := subModQ(new(big.Int).Neg(s.Y), mulModQ(s.R, tPrime, q), q)
		wPrime := addModQ(mulModQ(s.A, ch, q), s.W, q)
		fPrime := addModQ(mulModQ(s.Rp, ch, q), s.F, q)
		bits[i] = ZK2Bit{T: tPrime, Z: zPrime, Y: yPrime, W: wPrime, F: fPrime}
	}
	return &ZK2{Bits: bits}
}
