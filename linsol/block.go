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
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/comm"
)

// Mode selects how the chemistry Newton systems are solved.
type Mode int

const (
	// Direct factors the assembled Jacobian blocks.
	Direct Mode = iota
	// Iterative uses GMRES with a matrix-free operator.
	Iterative
)

func (m Mode) String() string {
	if m == Iterative {
		return "iterative"
	}
	return "direct"
}

// direct and iterative are the two variants of a BlockSolver.
type direct struct {
	lu *DenseBlocks
}

type iterative struct {
	gmres *GMRES
	op    *JFNK
}

// BlockSolver solves the chemistry part of the Newton systems of the
// implicit stage. Each process solves its own cells; Solve then reduces
// the outcome so that every process returns the same status.
type BlockSolver struct {
	Comm    comm.Communicator
	Log     logrus.FieldLogger
	Profile *chemhydro.Profile

	variant interface{}
	last    Status
}

// NewDirectSolver returns a solver that factors blocks×n×n Jacobians.
func NewDirectSolver(c comm.Communicator, blocks, n int) *BlockSolver {
	return &BlockSolver{
		Comm:    c,
		Log:     logrus.StandardLogger(),
		variant: direct{lu: NewDenseBlocks(blocks, n)},
	}
}

// NewIterativeSolver returns a matrix-free solver for chemistry blocks of
// length n. rhs is the chemistry right-hand side used to approximate
// Jacobian products, and timeUnits converts its output to code time
// units.
func NewIterativeSolver(c comm.Communicator, n, maxl int, rhs RHSFunc, timeUnits float64) *BlockSolver {
	s := &BlockSolver{
		Comm: c,
		Log:  logrus.StandardLogger(),
	}
	it := iterative{gmres: NewGMRES(n, maxl), op: NewJFNK(n, rhs, timeUnits)}
	it.gmres.ATimes = s.ApplyOperator
	s.variant = it
	return s
}

// Mode returns the solution mode of s.
func (s *BlockSolver) Mode() Mode {
	if _, ok := s.variant.(iterative); ok {
		return Iterative
	}
	return Direct
}

func (s *BlockSolver) local() LocalSolver {
	switch v := s.variant.(type) {
	case direct:
		return v.lu
	case iterative:
		return v.gmres
	}
	panic(fmt.Errorf("linsol: invalid solver variant %T", s.variant))
}

// Attach gives the matrix-free operator access to the integrator. It has
// no effect in direct mode.
func (s *BlockSolver) Attach(ig Integrator) {
	if v, ok := s.variant.(iterative); ok {
		v.op.Integrator = ig
	}
}

// CacheRHS records the chemistry right-hand side at the current Newton
// iterate. It has no effect in direct mode.
func (s *BlockSolver) CacheRHS(f0 []float64) {
	if v, ok := s.variant.(iterative); ok {
		v.op.CacheRHS(f0)
	}
}

// NumFDEvals returns the number of right-hand side evaluations used for
// finite-difference Jacobian products.
func (s *BlockSolver) NumFDEvals() int {
	if v, ok := s.variant.(iterative); ok {
		return v.op.NumRHSEvals()
	}
	return 0
}

// NumLinIters returns the number of Krylov iterations of the latest
// solve, which is zero in direct mode.
func (s *BlockSolver) NumLinIters() int {
	if v, ok := s.variant.(iterative); ok {
		return v.gmres.Iters
	}
	return 0
}

// LastFlag returns the status of the latest operation.
func (s *BlockSolver) LastFlag() Status { return s.last }

// Initialize prepares the local solver.
func (s *BlockSolver) Initialize() Status {
	if v, ok := s.variant.(iterative); ok {
		v.op.alloc()
	}
	s.last = s.local().Initialize()
	return s.last
}

// Setup prepares the local solver for the process-local chemistry
// Jacobian A. No communication takes place.
func (s *BlockSolver) Setup(A *chemhydro.BlockMatrix) Status {
	defer s.Profile.Start(chemhydro.LSetup)()
	s.last = s.local().Setup(A)
	return s.last
}

// Solve sets the chemistry block of x to the solution of the Newton
// system with the chemistry block of b as right-hand side. The other
// fields of x and b are not used. Every process in the group returns the
// same status.
func (s *BlockSolver) Solve(x, b *chemhydro.State, tol float64) Status {
	stop := s.Profile.Start(chemhydro.LSolve)
	xb, bb := x.Buffer(chemhydro.Chemistry), b.Buffer(chemhydro.Chemistry)
	bb.CopyToDevice()
	xd := xb.Device()
	st := s.local().Solve(xd, bb.Device(), tol)
	if st == Success {
		for _, v := range xd {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				st = PackageFailRec
				break
			}
		}
	}
	xb.CopyFromDevice()
	stop()

	stop = s.Profile.Start(chemhydro.LSolveComm)
	global, err := Consensus(s.Comm, st)
	stop()
	if err != nil {
		s.Log.WithError(err).Error("linsol: solve consensus failed")
	}
	if global != Success {
		s.Log.WithFields(logrus.Fields{
			"local":  st,
			"global": global,
			"mode":   s.Mode(),
		}).Debug("linsol: solve failed")
	}
	s.last = global
	return global
}

// ApplyOperator sets z to the product of the Newton matrix with v using
// the matrix-free operator. It fails in direct mode.
func (s *BlockSolver) ApplyOperator(v, z []float64) Status {
	it, ok := s.variant.(iterative)
	if !ok {
		return ATimesNull
	}
	defer s.Profile.Start(chemhydro.LATimes)()
	return it.op.Apply(v, z)
}

// Free releases the local solver's resources and, in iterative mode, the
// operator's scratch vectors.
func (s *BlockSolver) Free() {
	s.local().Free()
	if v, ok := s.variant.(iterative); ok {
		v.op.Free()
	}
}

// Consensus combines the local status of every process in c with a single
// minimum reduction. If any process failed unrecoverably, the most
// negative status is returned; otherwise the largest recoverable status
// (or Success) is returned.
func Consensus(c comm.Communicator, local Status) (Status, error) {
	buf := []int{int(local), -int(local)}
	if err := c.AllreduceMin(buf); err != nil {
		return PackageFailUnrec, fmt.Errorf("linsol: %v", err)
	}
	if buf[0] < 0 {
		return Status(buf[0]), nil
	}
	return Status(-buf[1]), nil
}
