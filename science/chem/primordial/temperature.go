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

import "math"

// maxTemperatureIterations is the number of Newton iterations used to
// find the temperature.
const maxTemperatureIterations = 10

// temperature finds the gas temperature of the physical composition y by
// Newton iteration on the internal energy, starting from Ts. It returns
// the temperature clamped to the table bounds and the derivative of
// temperature with respect to internal energy.
func (n *Network) temperature(y *[NumSpecies]float64, Ts float64, w *coefficients) (T, dTge float64) {
	const gm1 = 1 / (gammaA - 1)
	rho := mh * (mwH2*(y[H2I]+y[H2II]) + mwH*(y[HI]+y[HII]+y[HM]) + mwHe*(y[HeI]+y[HeII]+y[HeIII]))
	atomic := gm1 * (y[HI] + y[HII] + y[HM] + y[HeI] + y[HeII] + y[HeIII] + y[DE])
	lower, upper := n.Tables.Bounds[0], n.Tables.Bounds[1]

	T = Ts
	var dgedT float64
	for it := 0; it < maxTemperatureIterations; it++ {
		if T <= 0 {
			T = lower
		}
		n.Tables.interpolateGamma(T, w)
		g1 := 1 / (w.gamma[gammaH2I] - 1)
		g2 := 1 / (w.gamma[gammaH2II] - 1)
		s := y[H2I]*g1 + y[H2II]*g2 + atomic
		dgedT = T*kb*(-y[H2I]*g1*g1*w.gamma[dgammaH2IdT]-y[H2II]*g2*g2*w.gamma[dgammaH2IIdT])/rho + kb*s/rho
		dge := T*kb*s/rho - y[GE]
		Tnew := T - dge/dgedT
		done := n.TemperatureTolerance > 0 && math.Abs(Tnew-T) <= n.TemperatureTolerance*math.Abs(Tnew)
		T = Tnew
		if done {
			break
		}
	}
	if T < lower {
		T = lower
	} else if T > upper {
		T = upper
	}
	return T, 1 / dgedT
}

// CellTemperature returns the temperature of the physical composition y
// of one cell, solved from a starting guess of 1000 K.
func (n *Network) CellTemperature(y []float64) float64 {
	var p [NumSpecies]float64
	copy(p[:], y)
	var w coefficients
	T, _ := n.temperature(&p, initialTemperature, &w)
	return T
}

// SpecificEnergy returns the specific internal energy [erg g-1] of the
// physical composition y at temperature T, using the tabulated molecular
// adiabatic indices.
func (n *Network) SpecificEnergy(y []float64, T float64) float64 {
	var w coefficients
	n.Tables.interpolateGamma(T, &w)
	const gm1 = 1 / (gammaA - 1)
	rho := mh * (mwH2*(y[H2I]+y[H2II]) + mwH*(y[HI]+y[HII]+y[HM]) + mwHe*(y[HeI]+y[HeII]+y[HeIII]))
	s := y[H2I]/(w.gamma[gammaH2I]-1) + y[H2II]/(w.gamma[gammaH2II]-1) +
		gm1*(y[HI]+y[HII]+y[HM]+y[HeI]+y[HeII]+y[HeIII]+y[DE])
	return T * kb * s / rho
}
