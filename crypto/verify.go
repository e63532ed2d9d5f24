package crypto

import "github.com/demos-voting/cryptoserver/curve"

// VerifyCom implements spec.md §4.3 VerifyCom: recompute a1 = rand*G,
// a2 = plain*G + rand*H and accept iff a1 == c1 && a2 == c2. spec.md §9
// explicitly forbids shipping the original source's `return true`
// stub; this is the real equation.
func VerifyCom(key *Key, com Com, decom Decom) (bool, error) {
	if len(com.Cells) != len(decom.Cells) {
		return false, ErrShapeMismatch
	}
	for i, cell := range com.Cells {
		d := decom.Cells[i]
		a1 := curve.BaseMul(key.Curve, d.R)
		a2 := curve.BaseMul(key.Curve, d.M).Add(key.H.Mul(d.R))
		if !pointsEqual(a1, cell.C1) || !pointsEqual(a2, cell.C2) {
			return false, nil
		}
	}
	return true, nil
}

// pointsEqual compares two points in constant time over their
// coordinate bytes, per spec.md §4.3's suggestion to use
// constant-time comparison.
func pointsEqual(a, b *curve.Point) bool {
	if a.ID != b.ID {
		return false
	}
	return constantTimeEq(a.Marshal(), b.Marshal())
}

func constantTimeEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
