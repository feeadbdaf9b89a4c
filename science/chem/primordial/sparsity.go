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

package primordial

import "github.com/spatialmodel/chemhydro"

// SparsePattern returns the layout of the nonzero entries of the
// per-cell Jacobian. Every diagonal entry is included.
func SparsePattern() chemhydro.Pattern {
	rows := [NumSpecies][]int{
		H2I:   {H2I, H2II, HI, HII, HM, DE, GE},
		H2II:  {H2I, H2II, HI, HII, HM, DE, GE},
		HI:    {H2I, H2II, HI, HII, HM, DE, GE},
		HII:   {H2I, H2II, HI, HII, HM, DE, GE},
		HM:    {H2II, HI, HII, HM, DE, GE},
		HeI:   {HeI, HeII, DE, GE},
		HeII:  {HeI, HeII, HeIII, DE, GE},
		HeIII: {HeII, HeIII, DE, GE},
		DE:    {H2II, HI, HII, HM, HeI, HeII, HeIII, DE, GE},
		GE:    {H2I, HI, HII, HeI, HeII, HeIII, DE, GE},
	}
	p := chemhydro.Pattern{N: NumSpecies, RowPtr: make([]int, NumSpecies+1)}
	for r, cols := range rows {
		p.ColIdx = append(p.ColIdx, cols...)
		p.RowPtr[r+1] = len(p.ColIdx)
	}
	return p
}
