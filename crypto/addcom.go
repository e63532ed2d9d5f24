package crypto

import "math/big"

// AddCom implements spec.md §4.3 AddCom: slot-wise elliptic-curve
// addition of corresponding (c1, c2) pairs across all input Coms.
// Grounded on original_source's AddCom (crypto.cpp), which sums both
// c1 and c2 for every input — resolving spec.md §9's open question
// ("whether AddCom on the ZK form should also sum c2") in favor of
// always summing both; see DESIGN.md.
func AddCom(coms []Com) (*Com, error) {
	if len(coms) == 0 {
		return &Com{}, nil
	}
	width := len(coms[0].Cells)
	for _, c := range coms[1:] {
		if len(c.Cells) != width {
			return nil, ErrShapeMismatch
		}
	}
	out := Com{Cells: make([]Cell, width)}
	for slot := 0; slot < width; slot++ {
		sum := coms[0].Cells[slot]
		for _, c := range coms[1:] {
			sum = Cell{
				C1: sum.C1.Add(c.Cells[slot].C1),
				C2: sum.C2.Add(c.Cells[slot].C2),
			}
		}
		out.Cells[slot] = sum
	}
	return &out, nil
}

// AddDecom implements spec.md §4.3 AddDecom: slot-wise integer
// addition of randomness and message components, reduced mod q.
func AddDecom(decoms []Decom, q *big.Int) (*Decom, error) {
	if len(decoms) == 0 {
		return &Decom{}, nil
	}
	width := len(decoms[0].Cells)
	for _, d := range decoms[1:] {
		if len(d.Cells) != width {
			return nil, ErrShapeMismatch
		}
	}
	out := Decom{Cells: make([]DecomCell, width)}
	for slot := 0; slot < width; slot++ {
		r := new(big.Int)
		m := new(big.Int)
		for _, d := range decoms {
			r.Add(r, d.Cells[slot].R)
			m.Add(m, d.Cells[slot].M)
		}
		out.Cells[slot] = DecomCell{R: r.Mod(r, q), M: m.Mod(m, q)}
	}
	return &out, nil
}
