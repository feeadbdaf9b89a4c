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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/comm"
)

// randomBlocks returns a block matrix with random, diagonally dominant
// blocks.
func randomBlocks(r *rand.Rand, blocks int, p chemhydro.Pattern) *chemhydro.BlockMatrix {
	A := chemhydro.NewBlockMatrix(blocks, p)
	for b := 0; b < blocks; b++ {
		blk := A.Block(b)
		for row := 0; row < p.N; row++ {
			for k := p.RowPtr[row]; k < p.RowPtr[row+1]; k++ {
				blk[k] = r.Float64() - 0.5
				if p.ColIdx[k] == row {
					blk[k] += float64(p.N)
				}
			}
		}
	}
	return A
}

func testState(t *testing.T, ncells, nspecies int) *chemhydro.State {
	g := chemhydro.Grid{NX: ncells, NY: 1, NZ: 1, XR: 1, YR: 1, ZR: 1}
	ext, err := chemhydro.Decompose(g, [3]int{1, 1, 1}, 0, 1)
	require.NoError(t, err)
	return chemhydro.NewState(ext, nspecies, chemhydro.Mirrored)
}

func TestStatus(t *testing.T) {
	assert.True(t, LUFactFail.Recoverable())
	assert.False(t, QRSolFail.Recoverable())
	assert.NoError(t, Success.Err("x"))
	err := ATimesFailUnrec.Err("apply")
	assert.Equal(t, int(ATimesFailUnrec), chemhydro.StatusOf(err))
	assert.ErrorIs(t, err, chemhydro.ErrUnrecoverable)
	assert.Equal(t, "LU factorization failure", LUFactFail.String())
	assert.Equal(t, "status 5", Status(5).String())
}

func TestConsensus(t *testing.T) {
	cases := []struct {
		name   string
		local  func(rank int) Status
		expect Status
	}{
		{"success", func(int) Status { return Success }, Success},
		{"one unrecoverable", func(rank int) Status {
			if rank == 1 {
				return ATimesFailUnrec
			}
			return Success
		}, ATimesFailUnrec},
		{"worst recoverable", func(rank int) Status {
			return []Status{Success, ConvFail, LUFactFail, ResReduced}[rank]
		}, LUFactFail},
		{"unrecoverable wins", func(rank int) Status {
			return []Status{LUFactFail, MemNull, Success, PackageFailUnrec}[rank]
		}, PackageFailUnrec},
	}
	for _, c := range cases {
		for _, size := range []int{2, 3, 4} {
			if c.name != "success" && c.name != "one unrecoverable" && size < 4 {
				continue
			}
			var results [4]Status
			err := comm.Run(size, func(cm comm.Communicator) error {
				st, err := Consensus(cm, c.local(cm.Rank()))
				results[cm.Rank()] = st
				return err
			})
			require.NoError(t, err, c.name)
			for r := 0; r < size; r++ {
				assert.Equal(t, c.expect, results[r], "%s: size %d rank %d", c.name, size, r)
			}
		}
	}
}

func TestDenseBlocks(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const blocks, n = 5, 6
	for _, p := range []chemhydro.Pattern{chemhydro.DensePattern(n), tridiagonal(n)} {
		A := randomBlocks(r, blocks, p)
		b := make([]float64, blocks*n)
		for i := range b {
			b[i] = r.NormFloat64()
		}
		d := NewDenseBlocks(blocks, n)
		require.Equal(t, Success, d.Initialize())
		require.Equal(t, Success, d.Setup(A))
		x := make([]float64, len(b))
		require.Equal(t, Success, d.Solve(x, b, 0))

		for blk := 0; blk < blocks; blk++ {
			var want mat.VecDense
			err := want.SolveVec(A.Dense(blk), mat.NewVecDense(n, append([]float64(nil), b[blk*n:(blk+1)*n]...)))
			require.NoError(t, err)
			for i := 0; i < n; i++ {
				assert.InDelta(t, want.AtVec(i), x[blk*n+i], 1e-12, "block %d entry %d", blk, i)
			}
		}
		d.Free()
		assert.Equal(t, MemNull, d.Solve(x, b, 0))
	}
}

func tridiagonal(n int) chemhydro.Pattern {
	p := chemhydro.Pattern{N: n, RowPtr: make([]int, n+1)}
	for r := 0; r < n; r++ {
		for c := r - 1; c <= r+1; c++ {
			if c >= 0 && c < n {
				p.ColIdx = append(p.ColIdx, c)
			}
		}
		p.RowPtr[r+1] = len(p.ColIdx)
	}
	return p
}

func TestDenseBlocksSingular(t *testing.T) {
	A := chemhydro.NewBlockMatrix(2, chemhydro.DensePattern(3))
	A.ScaleAddIdentity(0)
	A.Block(1)[0] = 0
	d := NewDenseBlocks(2, 3)
	require.Equal(t, Success, d.Initialize())
	assert.Equal(t, LUFactFail, d.Setup(A))
	assert.Equal(t, IllInput, d.Setup(chemhydro.NewBlockMatrix(3, chemhydro.DensePattern(3))))
}

func TestGMRES(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	const blocks, n = 4, 5
	A := randomBlocks(r, blocks, chemhydro.DensePattern(n))
	b := make([]float64, blocks*n)
	for i := range b {
		b[i] = r.NormFloat64()
	}
	d := NewDenseBlocks(blocks, n)
	require.Equal(t, Success, d.Initialize())
	require.Equal(t, Success, d.Setup(A))
	want := make([]float64, len(b))
	require.Equal(t, Success, d.Solve(want, b, 0))

	g := NewGMRES(len(b), len(b))
	g.ATimes = func(v, z []float64) Status {
		A.MulVec(z, v)
		return Success
	}
	require.Equal(t, Success, g.Initialize())
	require.Equal(t, Success, g.Setup(nil))
	x := make([]float64, len(b))
	assert.Equal(t, Success, g.Solve(x, b, 1e-12))
	assert.True(t, g.ResNorm <= 1e-12)
	for i := range x {
		assert.InDelta(t, want[i], x[i], 1e-9, "entry %d", i)
	}

	// A small Krylov space with restarts still converges for a
	// diagonally dominant matrix.
	g2 := NewGMRES(len(b), 3)
	g2.MaxRestarts = 50
	g2.ATimes = g.ATimes
	require.Equal(t, Success, g2.Initialize())
	assert.Equal(t, Success, g2.Solve(x, b, 1e-10))
	for i := range x {
		assert.InDelta(t, want[i], x[i], 1e-8, "restarted entry %d", i)
	}

	// Without restarts it cannot reach the tolerance.
	g3 := NewGMRES(len(b), 2)
	g3.ATimes = g.ATimes
	require.Equal(t, Success, g3.Initialize())
	assert.Equal(t, ResReduced, g3.Solve(x, b, 1e-14))

	g4 := NewGMRES(len(b), 2)
	require.Equal(t, Success, g4.Initialize())
	assert.Equal(t, ATimesNull, g4.Solve(x, b, 1e-14))

	// A failing operator application ends the solve with its status.
	var calls int
	g5 := NewGMRES(len(b), len(b))
	g5.ATimes = func(v, z []float64) Status {
		calls++
		if calls == 3 {
			return ATimesFailRec
		}
		return g.ATimes(v, z)
	}
	require.Equal(t, Success, g5.Initialize())
	assert.Equal(t, ATimesFailRec, g5.Solve(x, b, 1e-12))
	assert.Equal(t, 3, g5.Iters)
	for i := range x {
		if x[i] != 0 {
			t.Errorf("entry %d after failure: have %g, want 0", i, x[i])
		}
	}

	// A right-hand side already within tolerance needs no iterations.
	assert.Equal(t, Success, g.Solve(x, b, 2*floats.Norm(b, 2)))
	assert.Zero(t, g.Iters)

	g.Free()
	assert.Equal(t, MemNull, g.Solve(x, b, 1e-12))
}

// fakeIntegrator is a fixed Newton iterate.
type fakeIntegrator struct {
	t, gamma float64
	y, w     *chemhydro.State
}

func (f *fakeIntegrator) CurrentTime() float64           { return f.t }
func (f *fakeIntegrator) CurrentState() *chemhydro.State { return f.y }
func (f *fakeIntegrator) ErrorWeights() *chemhydro.State { return f.w }
func (f *fakeIntegrator) CurrentGamma() float64          { return f.gamma }

func TestJFNKConvergence(t *testing.T) {
	const ncells, nspecies = 3, 4
	y := testState(t, ncells, nspecies)
	w := testState(t, ncells, nspecies)
	yc := y.Data(chemhydro.Chemistry)
	for i := range yc {
		yc[i] = 1 + 0.1*float64(i)
	}
	y.Buffer(chemhydro.Chemistry).CopyToDevice()
	ig := &fakeIntegrator{gamma: 0.3, y: y, w: w}

	// f(y) = y², so J = diag(2y).
	const timeUnits = 2.
	rhs := func(_ float64, y, ydot []float64) error {
		for i, v := range y {
			ydot[i] = v * v / timeUnits
		}
		return nil
	}
	n := len(yc)
	op := NewJFNK(n, rhs, timeUnits)
	op.Integrator = ig
	f0 := make([]float64, n)
	for i, v := range yc {
		f0[i] = v * v
	}
	op.CacheRHS(f0)

	v := make([]float64, n)
	exact := make([]float64, n)
	for i := range v {
		v[i] = math.Sin(float64(i) + 1)
		exact[i] = v[i] - ig.gamma*2*yc[i]*v[i]
	}
	z := make([]float64, n)
	prev := math.Inf(1)
	for _, scale := range []float64{1, 10, 100, 1000, 1e4} {
		wc := w.Data(chemhydro.Chemistry)
		for i := range wc {
			wc[i] = scale
		}
		w.Buffer(chemhydro.Chemistry).CopyToDevice()
		require.Equal(t, Success, op.Apply(v, z))
		var e float64
		for i := range z {
			e = math.Max(e, math.Abs(z[i]-exact[i]))
		}
		assert.True(t, e < prev, "scale %g: error %g did not decrease from %g", scale, e, prev)
		prev = e
	}
	assert.True(t, prev < 1e-4, "final error %g", prev)
	assert.Equal(t, 5, op.NumRHSEvals())

	// A zero vector maps to itself without evaluating the right-hand side.
	zero := make([]float64, n)
	require.Equal(t, Success, op.Apply(zero, z))
	assert.Equal(t, zero, z)
	assert.Equal(t, 5, op.NumRHSEvals())
}

func TestJFNKFailure(t *testing.T) {
	y := testState(t, 1, 2)
	w := testState(t, 1, 2)
	w.Fill(1)
	w.Buffer(chemhydro.Chemistry).CopyToDevice()
	ig := &fakeIntegrator{gamma: 1, y: y, w: w}
	op := NewJFNK(2, func(_ float64, _, _ []float64) error {
		return chemhydro.Recoverable("test", nil)
	}, 1)
	assert.Equal(t, ATimesNull, op.Apply([]float64{1, 1}, make([]float64, 2)))
	op.Integrator = ig
	assert.Equal(t, ATimesFailRec, op.Apply([]float64{1, 1}, make([]float64, 2)))
	op.RHS = func(_ float64, _, _ []float64) error { return chemhydro.Unrecoverable("test", nil) }
	assert.Equal(t, ATimesFailUnrec, op.Apply([]float64{1, 1}, make([]float64, 2)))
	op.RHS = func(_ float64, _, ydot []float64) error {
		ydot[0] = math.Inf(1)
		return nil
	}
	assert.Equal(t, ATimesFailRec, op.Apply([]float64{1, 1}, make([]float64, 2)))
	op.Free()
	assert.Equal(t, MemNull, op.Apply([]float64{1, 1}, make([]float64, 2)))
}

// TestBlockSolverModes solves the same linear Newton system in direct and
// iterative mode on every rank of a group.
func TestBlockSolverModes(t *testing.T) {
	const ncells, nspecies, gamma = 4, 5, 0.05
	err := comm.Run(2, func(c comm.Communicator) error {
		r := rand.New(rand.NewSource(int64(c.Rank()) + 10))
		A := randomBlocks(r, ncells, chemhydro.DensePattern(nspecies))
		y := testState(t, ncells, nspecies)
		w := testState(t, ncells, nspecies)
		b := testState(t, ncells, nspecies)
		w.Fill(1e3)
		y.Fill(1)
		bc := b.Data(chemhydro.Chemistry)
		for i := range bc {
			bc[i] = r.NormFloat64()
		}
		for _, s := range []*chemhydro.State{y, w, b} {
			s.Buffer(chemhydro.Chemistry).CopyToDevice()
		}

		// Direct: factor I - gamma*A.
		M := chemhydro.NewBlockMatrix(ncells, A.Pattern)
		M.CopyFrom(A)
		M.ScaleAddIdentity(-gamma)
		ds := NewDirectSolver(c, ncells, nspecies)
		if st := ds.Initialize(); st != Success {
			return st.Err("initialize")
		}
		if st := ds.Setup(M); st != Success {
			return st.Err("setup")
		}
		xd := testState(t, ncells, nspecies)
		if st := ds.Solve(xd, b, 0); st != Success {
			return st.Err("direct solve")
		}
		assert.Equal(t, Direct, ds.Mode())
		assert.Equal(t, ATimesNull, ds.ApplyOperator(nil, nil))

		// Iterative: the right-hand side is linear, f(y) = A y.
		n := ncells * nspecies
		rhs := func(_ float64, y, ydot []float64) error {
			A.MulVec(ydot, y)
			return nil
		}
		is := NewIterativeSolver(c, n, n, rhs, 1)
		is.Attach(&fakeIntegrator{gamma: gamma, y: y, w: w})
		f0 := make([]float64, n)
		A.MulVec(f0, y.Buffer(chemhydro.Chemistry).Device())
		is.CacheRHS(f0)
		if st := is.Initialize(); st != Success {
			return st.Err("initialize")
		}
		if st := is.Setup(nil); st != Success {
			return st.Err("setup")
		}
		xi := testState(t, ncells, nspecies)
		if st := is.Solve(xi, b, 1e-9); st != Success {
			return st.Err("iterative solve")
		}
		assert.Equal(t, Iterative, is.Mode())
		assert.True(t, is.NumFDEvals() > 0)
		assert.True(t, is.NumLinIters() > 0)

		want, have := xd.Data(chemhydro.Chemistry), xi.Data(chemhydro.Chemistry)
		for i := range want {
			assert.InDelta(t, want[i], have[i], 1e-6, "rank %d entry %d", c.Rank(), i)
		}

		// Free releases the operator scratch as well as the Krylov
		// workspace; Initialize restores both.
		is.Free()
		assert.Equal(t, MemNull, is.ApplyOperator(make([]float64, n), make([]float64, n)))
		if st := is.Solve(xi, b, 1e-9); st != MemNull {
			return st.Err("solve after free")
		}
		if st := is.Initialize(); st != Success {
			return st.Err("initialize after free")
		}
		is.CacheRHS(f0)
		if st := is.Solve(xi, b, 1e-9); st != Success {
			return st.Err("solve after reinitialize")
		}
		ds.Free()
		return nil
	})
	require.NoError(t, err)
}

func TestBlockSolverSharedFailure(t *testing.T) {
	const ncells, nspecies = 2, 3
	var results [3]Status
	err := comm.Run(3, func(c comm.Communicator) error {
		M := chemhydro.NewBlockMatrix(ncells, chemhydro.DensePattern(nspecies))
		M.ScaleAddIdentity(0)
		if c.Rank() == 2 {
			M.Block(1)[4] = math.NaN()
		}
		s := NewDirectSolver(c, ncells, nspecies)
		s.Initialize()
		s.Setup(M)
		x := testState(t, ncells, nspecies)
		b := testState(t, ncells, nspecies)
		b.Fill(1)
		results[c.Rank()] = s.Solve(x, b, 0)
		return nil
	})
	require.NoError(t, err)
	for r, st := range results {
		assert.True(t, st.Recoverable(), "rank %d: %v", r, st)
		assert.Equal(t, results[0], st)
	}
}
