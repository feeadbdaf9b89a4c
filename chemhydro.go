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

// Package chemhydro holds the data model shared by the implicit chemistry
// stage of a coupled chemistry-hydrodynamics solver: the partitioned
// simulation state, per-cell block matrices, physical units, and the
// domain decomposition across processes.
package chemhydro

// Version gives the version number.
const Version = "0.1.0"

// Field identifies one component of the partitioned state.
type Field int

// The six state components. Chemistry holds NumSpecies values per cell,
// the other fields one value per cell.
const (
	Density Field = iota
	MomentumX
	MomentumY
	MomentumZ
	TotalEnergy
	Chemistry
)

// NumFields is the number of components in a State.
const NumFields = 6

var fieldNames = [NumFields]string{"rho", "mx", "my", "mz", "et", "chem"}

func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return "unknown"
	}
	return fieldNames[f]
}
