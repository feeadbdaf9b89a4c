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

package linsol

import (
	"sync/atomic"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"

	"github.com/spatialmodel/chemhydro"
)

// LocalSolver solves the part of a block-diagonal system owned by one
// process.
type LocalSolver interface {
	Initialize() Status
	// Setup prepares to solve systems with matrix A. Solvers that do not
	// use the matrix ignore it.
	Setup(A *chemhydro.BlockMatrix) Status
	// Solve sets x to the solution of the system with right-hand side b.
	// Iterative solvers stop once the residual norm is below tol.
	Solve(x, b []float64, tol float64) Status
	Free()
}

// DenseBlocks is a direct solver that stores an LU factorization of
// every block.
type DenseBlocks struct {
	N, Blocks int

	lu   []float64
	ipiv []int
}

// NewDenseBlocks returns a direct solver for the given number of n×n
// blocks.
func NewDenseBlocks(blocks, n int) *DenseBlocks {
	return &DenseBlocks{N: n, Blocks: blocks}
}

// Initialize allocates the factorization storage.
func (d *DenseBlocks) Initialize() Status {
	if d.N < 1 || d.Blocks < 0 {
		return IllInput
	}
	d.lu = make([]float64, d.Blocks*d.N*d.N)
	d.ipiv = make([]int, d.Blocks*d.N)
	return Success
}

func (d *DenseBlocks) block(b int) (blas64.General, []int) {
	n := d.N
	return blas64.General{Rows: n, Cols: n, Stride: n, Data: d.lu[b*n*n : (b+1)*n*n]},
		d.ipiv[b*n : (b+1)*n]
}

// Setup factors every block of A.
func (d *DenseBlocks) Setup(A *chemhydro.BlockMatrix) Status {
	if d.lu == nil {
		return MemNull
	}
	if A == nil || A.Blocks != d.Blocks || A.N != d.N {
		return IllInput
	}
	var singular int32
	chemhydro.ParallelFor(d.Blocks, func(b int) {
		a, ipiv := d.block(b)
		for i := range a.Data {
			a.Data[i] = 0
		}
		blk := A.Block(b)
		for r := 0; r < d.N; r++ {
			for k := A.RowPtr[r]; k < A.RowPtr[r+1]; k++ {
				a.Data[r*a.Stride+A.ColIdx[k]] = blk[k]
			}
		}
		if ok := lapack64.Getrf(a, ipiv); !ok {
			atomic.StoreInt32(&singular, 1)
		}
	})
	if singular != 0 {
		return LUFactFail
	}
	return Success
}

// Solve sets x to the solution of A x = b using the factorization from
// the latest Setup. tol is ignored.
func (d *DenseBlocks) Solve(x, b []float64, tol float64) Status {
	if d.lu == nil {
		return MemNull
	}
	if len(x) != d.Blocks*d.N || len(b) != len(x) {
		return IllInput
	}
	copy(x, b)
	n := d.N
	chemhydro.ParallelFor(d.Blocks, func(blk int) {
		a, ipiv := d.block(blk)
		rhs := blas64.General{Rows: n, Cols: 1, Stride: 1, Data: x[blk*n : (blk+1)*n]}
		lapack64.Getrs(blas.NoTrans, a, rhs, ipiv)
	})
	return Success
}

// Free releases the factorization storage.
func (d *DenseBlocks) Free() {
	d.lu, d.ipiv = nil, nil
}
