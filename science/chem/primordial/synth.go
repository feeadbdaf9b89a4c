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

// Analytic fits used to generate self-contained tables. They follow the
// functional forms of the standard primordial chemistry fits closely
// enough to give realistic magnitudes and temperature dependence.
var rateFits = [numRates]func(T float64) float64{
	k01: func(T float64) float64 { return 5.85e-11 * math.Sqrt(T) * math.Exp(-157809.1/T) / (1 + math.Sqrt(T/1e5)) },
	k02: func(T float64) float64 { return 8.4e-11 / math.Sqrt(T) * math.Pow(T/1e3, -0.2) / (1 + math.Pow(T/1e6, 0.7)) },
	k03: func(T float64) float64 { return 2.38e-11 * math.Sqrt(T) * math.Exp(-285335.4/T) / (1 + math.Sqrt(T/1e5)) },
	k04: func(T float64) float64 { return 1.5e-10 * math.Pow(T, -0.6353) },
	k05: func(T float64) float64 { return 5.68e-12 * math.Sqrt(T) * math.Exp(-631515/T) / (1 + math.Sqrt(T/1e5)) },
	k06: func(T float64) float64 { return 3.36e-10 / math.Sqrt(T) * math.Pow(T/1e3, -0.2) / (1 + math.Pow(T/1e6, 0.7)) },
	k07: func(T float64) float64 { return 1.4e-18 * math.Pow(T, 0.928) * math.Exp(-T/16200) },
	k08: func(T float64) float64 { return 1.35e-9 },
	k09: func(T float64) float64 { return 1.85e-23 * math.Pow(T, 1.8) },
	k10: func(T float64) float64 { return 6.0e-10 },
	k11: func(T float64) float64 { return 3.0e-10 * math.Exp(-21050/T) },
	k12: func(T float64) float64 { return 4.4e-10 * math.Pow(T, 0.35) * math.Exp(-102000/T) },
	k13: func(T float64) float64 { return 1.0e-10 * math.Exp(-52000/T) },
	k14: func(T float64) float64 { return 1.0e-9 * math.Exp(-8750/T) },
	k15: func(T float64) float64 { return 5.3e-20 * math.Pow(T, 2.17) * math.Exp(-8750/T) },
	k16: func(T float64) float64 { return 7.0e-8 * math.Pow(T/100, -0.5) },
	k17: func(T float64) float64 { return 1.0e-8 * math.Pow(T, -0.4) },
	k18: func(T float64) float64 { return 2.0e-7 / math.Sqrt(T) },
	k19: func(T float64) float64 { return 5.0e-6 / math.Sqrt(T) },
	k21: func(T float64) float64 { return 2.8e-31 * math.Pow(T, -0.6) },
	k22: func(T float64) float64 { return 5.5e-29 / T },
}

var coolingFits = [numCooling]func(T float64) float64{
	brem:    func(T float64) float64 { return 1.43e-27 * math.Sqrt(T) },
	ceHeI:   func(T float64) float64 { return 9.1e-27 * math.Pow(T, -0.1687) * math.Exp(-13179/T) / (1 + math.Sqrt(T/1e5)) },
	ceHeII:  func(T float64) float64 { return 5.54e-17 * math.Pow(T, -0.397) * math.Exp(-473638/T) / (1 + math.Sqrt(T/1e5)) },
	ceHI:    func(T float64) float64 { return 7.5e-19 * math.Exp(-118348/T) / (1 + math.Sqrt(T/1e5)) },
	cieCo:   func(T float64) float64 { return 2.3e-44 * math.Pow(T, 4) },
	ciHeI:   func(T float64) float64 { return 9.38e-22 * math.Sqrt(T) * math.Exp(-285335/T) / (1 + math.Sqrt(T/1e5)) },
	ciHeII:  func(T float64) float64 { return 4.95e-22 * math.Sqrt(T) * math.Exp(-631515/T) / (1 + math.Sqrt(T/1e5)) },
	ciHeIS:  func(T float64) float64 { return 5.01e-27 * math.Pow(T, -0.1687) * math.Exp(-55338/T) / (1 + math.Sqrt(T/1e5)) },
	ciHI:    func(T float64) float64 { return 1.27e-21 * math.Sqrt(T) * math.Exp(-157809/T) / (1 + math.Sqrt(T/1e5)) },
	compton: func(T float64) float64 { return 5.65e-36 },
	gael:    func(T float64) float64 { return 1e-23 * math.Pow(T/1e3, 1.5) },
	gaH2:    func(T float64) float64 { return 1e-23 * math.Pow(T/1e3, 1.2) },
	gaHe:    func(T float64) float64 { return 1e-23 * math.Pow(T/1e3, 1.1) },
	gaHI:    func(T float64) float64 { return 1e-23 * math.Pow(T/1e3, 1.3) },
	gaHp:    func(T float64) float64 { return 1e-23 * math.Pow(T/1e3, 1.4) },
	h2lte:   func(T float64) float64 { return 1e-20 * math.Pow(T/1e3, 3) / (1 + math.Pow(T/1e3, 2.5)) },
	h2mcool: func(T float64) float64 { return 7.18e-12 * 1e-10 * math.Exp(-52000/T) },
	h2mheat: func(T float64) float64 { return 7.18e-12 * 5.5e-29 / T },
	ncrd1:   func(T float64) float64 { return 1e-4 / math.Sqrt(T) },
	ncrd2:   func(T float64) float64 { return 1.6e-4 / math.Sqrt(T) },
	ncrn:    func(T float64) float64 { return 1e6 / math.Sqrt(T) },
	reHeII1: func(T float64) float64 { return 1.55e-26 * math.Pow(T, 0.3647) },
	reHeII2: func(T float64) float64 {
		return 1.24e-13 * math.Pow(T, -1.5) * math.Exp(-470000/T) * (1 + 0.3*math.Exp(-94000/T))
	},
	reHeIII: func(T float64) float64 { return 3.48e-26 * math.Sqrt(T) * math.Pow(T/1e3, -0.2) / (1 + math.Pow(T/1e6, 0.7)) },
	reHII:   func(T float64) float64 { return 8.7e-27 * math.Sqrt(T) * math.Pow(T/1e3, -0.2) / (1 + math.Pow(T/1e6, 0.7)) },
}

// h2Gamma returns the adiabatic index of molecular hydrogen and its
// temperature derivative. Rotational levels switch on around trot.
func h2Gamma(T float64) (gamma, dgdT float64) {
	const trot = 170.
	x := (trot / T) * (trot / T)
	r := 1 / (1 + x)
	drdT := 2 * x / T * r * r
	c := 1.5 + r
	return 1 + 1/c, -drdT / (c * c)
}

// SyntheticTables returns tables generated from analytic fits over the
// given temperature bounds.
func SyntheticTables(bounds [2]float64) (*Tables, error) {
	t := &Tables{Bounds: bounds}
	lb := math.Log(bounds[0])
	dbin := (math.Log(bounds[1]) - lb) / nbins
	temps := make([]float64, TableLength)
	for i := range temps {
		temps[i] = math.Exp(lb + float64(i)*dbin)
	}
	fill := func(f func(float64) float64) []float64 {
		d := make([]float64, TableLength)
		for i, T := range temps {
			d[i] = f(T)
		}
		return d
	}
	for i, f := range rateFits {
		t.Rates[i] = fill(f)
	}
	for i, f := range coolingFits {
		t.Cooling[i] = fill(f)
	}
	g := fill(func(T float64) float64 { v, _ := h2Gamma(T); return v })
	dg := fill(func(T float64) float64 { _, d := h2Gamma(T); return d })
	t.Gamma[gammaH2I], t.Gamma[dgammaH2IdT] = g, dg
	t.Gamma[gammaH2II], t.Gamma[dgammaH2IIdT] = append([]float64(nil), g...), append([]float64(nil), dg...)
	if err := t.init(); err != nil {
		return nil, err
	}
	return t, nil
}

// ConstantGamma replaces the molecular adiabatic indices with the
// constant value g. The temperature then depends linearly on the
// internal energy.
func (t *Tables) ConstantGamma(g float64) {
	for i := range t.Gamma {
		v := g
		if i == dgammaH2IdT || i == dgammaH2IIdT {
			v = 0
		}
		t.Gamma[i] = make([]float64, TableLength)
		for j := range t.Gamma[i] {
			t.Gamma[i][j] = v
		}
	}
}
