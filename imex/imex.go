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

// Package imex couples a per-cell chemistry network to a fluid model
// through the callbacks of an implicit-explicit (IMEX) time integrator:
// the fluid terms are treated explicitly and the chemistry implicitly.
package imex

import "github.com/spatialmodel/chemhydro"

// Chemistry is a per-cell reaction network that operates on a
// normalized chemistry block. ApplyScaling converts a normalized block to
// physical units and UnapplyScaling converts it back.
type Chemistry interface {
	NumSpecies() int
	// EnergyIndex is the per-cell index of the specific internal energy.
	EnergyIndex() int
	Pattern() chemhydro.Pattern

	RHS(t float64, y, ydot []float64) error
	Jacobian(t float64, y []float64, J *chemhydro.BlockMatrix) error

	ApplyScaling(y []float64)
	UnapplyScaling(y []float64)
}

// FluidRHS computes the time derivative of the fluid fields of y in code
// units. It must not write the chemistry field of ydot.
type FluidRHS interface {
	FluidRHS(t float64, y, ydot *chemhydro.State) error
}

// Counters records how often each integrator callback was invoked.
type Counters struct {
	ExplicitRHS, ImplicitRHS, Jacobian, Postprocess int
}
