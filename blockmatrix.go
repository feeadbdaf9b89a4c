/*
Copyright © 2024 the ChemHydro authors.
This file is part of ChemHydro.

ChemHydro is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ChemHydro is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ChemHydro.  If not, see <http://www.gnu.org/licenses/>.
*/

package chemhydro

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Pattern is a compressed sparse row layout of the nonzero entries of a
// square block. Every block in a BlockMatrix shares the same Pattern.
type Pattern struct {
	N      int
	RowPtr []int
	ColIdx []int
}

// DensePattern returns the pattern with every entry of an n×n block.
func DensePattern(n int) Pattern {
	p := Pattern{N: n, RowPtr: make([]int, n+1), ColIdx: make([]int, 0, n*n)}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			p.ColIdx = append(p.ColIdx, c)
		}
		p.RowPtr[r+1] = len(p.ColIdx)
	}
	return p
}

// NNZ returns the number of stored entries per block.
func (p Pattern) NNZ() int { return len(p.ColIdx) }

// Find returns the storage position of entry (r, c), or -1 if the entry is
// not part of the pattern.
func (p Pattern) Find(r, c int) int {
	for k := p.RowPtr[r]; k < p.RowPtr[r+1]; k++ {
		if p.ColIdx[k] == c {
			return k
		}
	}
	return -1
}

// Validate checks the internal consistency of p and that every diagonal
// entry is present.
func (p Pattern) Validate() error {
	if len(p.RowPtr) != p.N+1 || p.RowPtr[0] != 0 || p.RowPtr[p.N] != len(p.ColIdx) {
		return fmt.Errorf("chemhydro: malformed sparsity pattern row pointers %v", p.RowPtr)
	}
	for r := 0; r < p.N; r++ {
		if p.RowPtr[r+1] < p.RowPtr[r] {
			return fmt.Errorf("chemhydro: sparsity pattern row %d has negative length", r)
		}
		prev := -1
		for k := p.RowPtr[r]; k < p.RowPtr[r+1]; k++ {
			if c := p.ColIdx[k]; c <= prev || c >= p.N {
				return fmt.Errorf("chemhydro: sparsity pattern row %d has invalid column %d", r, c)
			}
			prev = p.ColIdx[k]
		}
		if p.Find(r, r) < 0 {
			return fmt.Errorf("chemhydro: sparsity pattern is missing diagonal entry %d", r)
		}
	}
	return nil
}

// BlockMatrix is a block-diagonal matrix with one small sparse block per
// grid cell.
type BlockMatrix struct {
	Pattern
	Blocks int
	Data   []float64
}

// NewBlockMatrix allocates a zeroed block matrix.
func NewBlockMatrix(blocks int, p Pattern) *BlockMatrix {
	return &BlockMatrix{Pattern: p, Blocks: blocks, Data: make([]float64, blocks*p.NNZ())}
}

// Block returns the stored entries of block b.
func (m *BlockMatrix) Block(b int) []float64 {
	nnz := m.NNZ()
	return m.Data[b*nnz : (b+1)*nnz]
}

// At returns entry (r, c) of block b.
func (m *BlockMatrix) At(b, r, c int) float64 {
	k := m.Find(r, c)
	if k < 0 {
		return 0
	}
	return m.Block(b)[k]
}

// Zero sets every stored entry to zero.
func (m *BlockMatrix) Zero() {
	for i := range m.Data {
		m.Data[i] = 0
	}
}

// Scale multiplies every stored entry by c.
func (m *BlockMatrix) Scale(c float64) {
	for i := range m.Data {
		m.Data[i] *= c
	}
}

// ScaleAddIdentity sets every block to c*A + I.
func (m *BlockMatrix) ScaleAddIdentity(c float64) {
	m.Scale(c)
	for b := 0; b < m.Blocks; b++ {
		blk := m.Block(b)
		for r := 0; r < m.N; r++ {
			blk[m.Find(r, r)]++
		}
	}
}

// CopyFrom copies the entries of o, which must share the pattern of m.
func (m *BlockMatrix) CopyFrom(o *BlockMatrix) {
	copy(m.Data, o.Data)
}

// MulVec sets y = A*x where x and y hold Blocks*N values.
func (m *BlockMatrix) MulVec(y, x []float64) {
	n := m.N
	for b := 0; b < m.Blocks; b++ {
		blk := m.Block(b)
		xb, yb := x[b*n:(b+1)*n], y[b*n:(b+1)*n]
		for r := 0; r < n; r++ {
			var s float64
			for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
				s += blk[k] * xb[m.ColIdx[k]]
			}
			yb[r] = s
		}
	}
}

// Dense returns block b as a dense matrix.
func (m *BlockMatrix) Dense(b int) *mat.Dense {
	d := mat.NewDense(m.N, m.N, nil)
	blk := m.Block(b)
	for r := 0; r < m.N; r++ {
		for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
			d.Set(r, m.ColIdx[k], blk[k])
		}
	}
	return d
}
