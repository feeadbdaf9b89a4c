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
	"math"
)

// Conservation tracks the total mass and energy in the domain relative to
// the first time it is checked.
type Conservation struct {
	initial [2]float64
	set     bool
}

// ConservationReport holds domain totals in CGS units and their relative
// change since the first check.
type ConservationReport struct {
	Mass, Energy             float64
	MassChange, EnergyChange float64
}

// Check computes the global totals of density and total energy over all
// processes. The first call records the baseline.
func (c *Conservation) Check(r Reducer, s *State, u *Units) (ConservationReport, error) {
	rho, et := s.Data(Density), s.Data(TotalEnergy)
	sums := []float64{0, 0}
	for i := range rho {
		sums[0] += rho[i]
		sums[1] += et[i]
	}
	if r != nil {
		if err := r.AllreduceSum(sums); err != nil {
			return ConservationReport{}, fmt.Errorf("chemhydro: conservation check: %v", err)
		}
	}
	vol := s.Ext.CellVolume() * u.Length * u.Length * u.Length
	rep := ConservationReport{
		Mass:   sums[0] * vol * u.Density,
		Energy: sums[1] * vol * u.Energy,
	}
	if !c.set {
		c.initial = [2]float64{rep.Mass, rep.Energy}
		c.set = true
	}
	rep.MassChange = relChange(rep.Mass, c.initial[0])
	rep.EnergyChange = relChange(rep.Energy, c.initial[1])
	return rep, nil
}

// Reset forgets the baseline so the next Check records a new one.
func (c *Conservation) Reset() { c.set = false }

func relChange(now, then float64) float64 {
	if then == 0 {
		return math.Abs(now)
	}
	return math.Abs(now-then) / math.Abs(then)
}

// FieldRMS returns the root-mean-square value over all processes of each
// fluid field followed by each chemical species.
func FieldRMS(r Reducer, s *State) ([]float64, error) {
	nf := int(Chemistry)
	sums := make([]float64, nf+s.NumSpecies+1)
	for f := Density; f < Chemistry; f++ {
		for _, v := range s.Data(f) {
			sums[f] += v * v
		}
	}
	chem := s.Data(Chemistry)
	for i, v := range chem {
		sums[nf+i%s.NumSpecies] += v * v
	}
	sums[len(sums)-1] = float64(s.NumCells())
	if r != nil {
		if err := r.AllreduceSum(sums); err != nil {
			return nil, fmt.Errorf("chemhydro: field statistics: %v", err)
		}
	}
	n := sums[len(sums)-1]
	out := sums[:len(sums)-1]
	for i := range out {
		out[i] = math.Sqrt(out[i] / n)
	}
	return out, nil
}
