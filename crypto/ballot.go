package crypto

import (
	"crypto/rand"
	"math/big"

	"github.com/demos-voting/cryptoserver/curve"
)

// Cell is one ElGamal-style encryption c1 = r*G, c2 = r*H + m*G.
// This is the wire-level "Com" of a single slot (original_source's
// protobuf Com message carries exactly one such pair).
type Cell struct {
	C1, C2 *curve.Point
}

// DecomCell opens one Cell: the randomness and message that produced it.
type DecomCell struct {
	R, M *big.Int
}

// Com is spec.md §3's commitment/ciphertext: an ordered sequence of
// (c1, c2) pairs, one per slot of a ballot's option vector.
type Com struct {
	Cells []Cell
}

// Decom opens a Com slot-by-slot.
type Decom struct {
	Cells []DecomCell
}

// Ballot is one voter ballot: a Com/Decom pair over NumOpt slots, plus
// one ZK1/ZKState pair per slot when generated with the ZK variant.
type Ballot struct {
	Com     Com
	Decom   Decom
	ZK1     []ZK1     // len == numOptions, nil for the plain variant
	ZKState []ZKState // len == numOptions, nil for the plain variant
}

// BallotData is the result of GenBallot: `copies` ballots.
type BallotData struct {
	Ballots []Ballot
}

func shapeErr(got, want int) error {
	if got != want {
		return ErrShapeMismatch
	}
	return nil
}

// GenBallotPlain implements the "plain" GenBallot variant of spec.md
// §4.3: each ballot encrypts the unit vector e_choice of length
// numOptions (slot `choice` carries message 1, all others 0). Passing
// numBlank>0 additionally appends numBlank all-zero ballots of the
// same shape (spec.md: "Blank ballots ... emitted with the same slot
// layout but m=0 in every slot").
func GenBallotPlain(key *Key, numOptions, choice, numBlank, copies int) (*BallotData, error) {
	if choice < 0 || choice >= numOptions {
		return nil, ErrShapeMismatch
	}
	out := &BallotData{}
	for i := 0; i < copies; i++ {
		b, err := genPlainBallot(key, numOptions, choice)
		if err != nil {
			return nil, err
		}
		out.Ballots = append(out.Ballots, *b)
	}
	for i := 0; i < numBlank; i++ {
		b, err := genPlainBallot(key, numOptions, -1)
		if err != nil {
			return nil, err
		}
		out.Ballots = append(out.Ballots, *b)
	}
	return out, nil
}

func genPlainBallot(key *Key, numOptions, choice int) (*Ballot, error) {
	b := &Ballot{}
	for slot := 0; slot < numOptions; slot++ {
		r, err := curve.RandScalar(key.Curve, rand.Reader)
		if err != nil {
			return nil, err
		}
		m := big.NewInt(0)
		if slot == choice {
			m = big.NewInt(1)
		}
		c1 := curve.BaseMul(key.Curve, r)
		c2 := key.H.Mul(r)
		if m.Sign() != 0 {
			c2 = c2.Add(curve.BaseMul(key.Curve, m))
		}
		b.Com.Cells = append(b.Com.Cells, Cell{C1: c1, C2: c2})
		b.Decom.Cells = append(b.Decom.Cells, DecomCell{R: r, M: m})
	}
	return b, nil
}

// GenBallotZK implements the ZK variant: for each of `copies` ballots
// and each slot j in [0, numOptions), produce an encryption of N^j
// (N = number of declared ballots + 1, per original_source) together
// with a Σ-protocol proof that the slot encrypts one of
// {N^0, ..., N^(numOptions-1)}, ported verbatim from
// original_source/demos-crypto/src/crypto.cpp's GenBallot ZK block.
func GenBallotZK(key *Key, numOptions, numBallots, copies int) (*BallotData, error) {
	out := &BallotData{}
	for i := 0; i < copies; i++ {
		b, err := genZKBallot(key, numOptions, numBallots)
		if err != nil {
			return nil, err
		}
		out.Ballots = append(out.Ballots, *b)
	}
	return out, nil
}

func genZKBallot(key *Key, numOptions, numBallots int) (*Ballot, error) {
	q := key.Curve.Curve().Params().N
	n := big.NewInt(int64(numBallots) + 1) // N = ballots+1
	l := bitLength(numOptions)

	b := &Ballot{}
	for j := 0; j < numOptions; j++ {
		cell, decomCell, zk1, zkState, err := genZKSlot(key, q, n, j, l)
		if err != nil {
			return nil, err
		}
		b.Com.Cells = append(b.Com.Cells, *cell)
		b.Decom.Cells = append(b.Decom.Cells, *decomCell)
		b.ZK1 = append(b.ZK1, *zk1)
		b.ZKState = append(b.ZKState, *zkState)
	}
	return b, nil
}

func powModQ(n *big.Int, e int64, q *big.Int) *big.Int {
	return new(big.Int).Exp(n, big.NewInt(e), q)
}

func pow2(e int) int64 {
	return int64(1) << uint(e)
}
