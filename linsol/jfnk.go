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

	"gonum.org/v1/gonum/floats"

	"github.com/spatialmodel/chemhydro"
)

// Integrator is the view of the time integrator that the matrix-free
// operator needs: the current Newton iterate and its error weights, and
// the implicit coefficient gamma of the system I - gamma*J.
type Integrator interface {
	CurrentTime() float64
	CurrentState() *chemhydro.State
	ErrorWeights() *chemhydro.State
	CurrentGamma() float64
}

// RHSFunc evaluates the chemistry time derivative of the chemistry block
// y into ydot, in physical time units.
type RHSFunc func(t float64, y, ydot []float64) error

// JFNK applies the operator I - gamma*J to a vector, approximating the
// product of the chemistry Jacobian J with the vector by a finite
// difference of the chemistry right-hand side.
type JFNK struct {
	RHS RHSFunc

	// TimeUnits converts RHS output to code time units.
	TimeUnits float64

	Integrator Integrator

	n        int
	f0, work []float64
	nfe      int
}

// NewJFNK returns an operator for chemistry blocks of length n.
func NewJFNK(n int, rhs RHSFunc, timeUnits float64) *JFNK {
	j := &JFNK{RHS: rhs, TimeUnits: timeUnits, n: n}
	j.alloc()
	return j
}

// alloc allocates the cached right-hand side and the perturbed state if
// they have been released.
func (j *JFNK) alloc() {
	if j.work == nil {
		j.f0 = make([]float64, j.n)
		j.work = make([]float64, j.n)
	}
}

// Free releases the cached right-hand side and the perturbed state.
func (j *JFNK) Free() { j.f0, j.work = nil, nil }

// CacheRHS records the right-hand side at the current Newton iterate, in
// code time units.
func (j *JFNK) CacheRHS(f0 []float64) { copy(j.f0, f0) }

// NumRHSEvals returns the number of right-hand side evaluations used for
// finite differences.
func (j *JFNK) NumRHSEvals() int { return j.nfe }

// Apply sets z to an approximation of (I - gamma*J) v.
func (j *JFNK) Apply(v, z []float64) Status {
	if j.Integrator == nil || j.RHS == nil {
		return ATimesNull
	}
	if j.work == nil {
		return MemNull
	}
	if len(v) != len(j.f0) || len(z) != len(v) {
		return IllInput
	}
	y := j.Integrator.CurrentState().Buffer(chemhydro.Chemistry).Device()
	w := j.Integrator.ErrorWeights().Buffer(chemhydro.Chemistry).Device()
	gamma := j.Integrator.CurrentGamma()

	nrm := wrmsNorm(v, w)
	if nrm == 0 {
		copy(z, v)
		return Success
	}
	sig := 1 / nrm
	floats.AddScaledTo(j.work, y, sig, v)
	if err := j.RHS(j.Integrator.CurrentTime(), j.work, z); err != nil {
		return operatorStatus(err)
	}
	j.nfe++
	for i := range z {
		jv := (z[i]*j.TimeUnits - j.f0[i]) / sig
		z[i] = v[i] - gamma*jv
		if math.IsNaN(z[i]) || math.IsInf(z[i], 0) {
			return ATimesFailRec
		}
	}
	return Success
}

// wrmsNorm returns the weighted root-mean-square norm of v.
func wrmsNorm(v, w []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for i, x := range v {
		s += (x * w[i]) * (x * w[i])
	}
	return math.Sqrt(s / float64(len(v)))
}
