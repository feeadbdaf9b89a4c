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
	"math"

	"gonum.org/v1/exp/linsolve"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/chemhydro"
)

// ATimesFunc sets z to the product of the system matrix with v.
type ATimesFunc func(v, z []float64) Status

// GMRES is a restarted generalized minimal residual solver. It only uses
// the system matrix through ATimes.
type GMRES struct {
	N           int
	MaxL        int // Krylov subspace dimension
	MaxRestarts int
	ATimes      ATimesFunc

	// Iters is the number of operator applications in the latest solve
	// and ResNorm the final residual norm.
	Iters   int
	ResNorm float64

	ctx *linsolve.Context
	rhs []float64
	src []float64
}

// NewGMRES returns a solver for systems of size n with Krylov subspace
// dimension maxl.
func NewGMRES(n, maxl int) *GMRES {
	return &GMRES{N: n, MaxL: maxl}
}

// Initialize allocates the solver workspace.
func (s *GMRES) Initialize() Status {
	if s.N < 1 || s.MaxL < 1 || s.MaxRestarts < 0 {
		return IllInput
	}
	s.ctx = linsolve.NewContext(s.N)
	s.rhs = make([]float64, s.N)
	s.src = make([]float64, s.N)
	return Success
}

// Setup does nothing; GMRES is matrix-free.
func (s *GMRES) Setup(*chemhydro.BlockMatrix) Status {
	if s.ctx == nil {
		return MemNull
	}
	return Success
}

// operator presents ATimes as a linsolve.MulVecToer. A failed product
// stops the iteration by panicking with operatorFailure, which Solve
// recovers.
type operator struct {
	atimes ATimesFunc
	src    []float64
	n      int
	status Status
}

type operatorFailure struct{}

func (o *operator) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	if trans {
		panic("linsol: transposed product with a matrix-free operator")
	}
	for i := range o.src {
		o.src[i] = x.AtVec(i)
	}
	o.n++
	if st := o.atimes(o.src, dst.RawVector().Data); st != Success {
		o.status = st
		panic(operatorFailure{})
	}
}

// Solve sets x to an approximate solution of A x = b, starting from a
// zero initial guess, that has a residual 2-norm of at most tol.
func (s *GMRES) Solve(x, b []float64, tol float64) (status Status) {
	if s.ctx == nil {
		return MemNull
	}
	if s.ATimes == nil {
		return ATimesNull
	}
	if len(x) != s.N || len(b) != s.N || tol < 0 {
		return IllInput
	}
	s.Iters = 0
	for i := range x {
		x[i] = 0
	}
	bnorm := floats.Norm(b, 2)
	if math.IsNaN(bnorm) || math.IsInf(bnorm, 0) {
		return VectorOpErr
	}
	s.ResNorm = bnorm
	if bnorm <= tol {
		return Success
	}

	// linsolve measures convergence relative to |b|, so the system is
	// solved for the unit right-hand side b/|b| and the solution rescaled.
	floats.ScaleTo(s.rhs, 1/bnorm, b)
	op := &operator{atimes: s.ATimes, src: s.src}
	defer func() {
		s.Iters = op.n
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(operatorFailure); !ok {
			panic(r)
		}
		for i := range x {
			x[i] = 0
		}
		status = op.status
	}()
	restart := s.MaxL
	if restart > s.N {
		restart = s.N
	}
	res, err := linsolve.Iterative(op, mat.NewVecDense(s.N, s.rhs),
		&linsolve.GMRES{Restart: restart},
		&linsolve.Settings{
			Dst:           mat.NewVecDense(s.N, x),
			Tolerance:     tol / bnorm,
			MaxIterations: s.MaxRestarts + 1,
			Work:          s.ctx,
		})
	floats.Scale(bnorm, x)
	s.ResNorm = res.ResidualNorm * bnorm
	switch {
	case err == nil:
		return Success
	case err == linsolve.ErrIterationLimit:
		if s.ResNorm < bnorm {
			return ResReduced
		}
		return ConvFail
	default:
		return PackageFailRec
	}
}

// Free releases the solver workspace.
func (s *GMRES) Free() {
	s.ctx, s.rhs, s.src = nil, nil, nil
}
