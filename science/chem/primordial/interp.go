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

import (
	"fmt"
	"math"
)

// locate returns the table interval containing ln(T) and the fractional
// position of ln(T) within it. The interval is clamped to the table, so
// temperatures outside the bounds are extrapolated linearly.
func (t *Tables) locate(T float64) (bin int, tdef, lnT float64) {
	lnT = math.Log(T)
	bin = int(t.idbin * (lnT - t.lb))
	if bin <= 0 {
		bin = 0
	} else if bin >= nbins {
		bin = nbins - 1
	}
	t1 := t.lb + float64(bin)*t.dbin
	t2 := t.lb + float64(bin+1)*t.dbin
	tdef = (lnT - t1) / (t2 - t1)
	return bin, tdef, lnT
}

func lerp(r []float64, bin int, tdef float64) float64 {
	return r[bin] + tdef*(r[bin+1]-r[bin])
}

// coefficients holds every tabulated quantity interpolated at one
// temperature, together with its derivative with respect to temperature.
type coefficients struct {
	T     float64
	k, dk [numRates]float64
	c, dc [numCooling]float64
	gamma [numGamma]float64
}

// interpolate fills w with the tabulated values at temperature T.
func (t *Tables) interpolate(T float64, w *coefficients) {
	bin, tdef, _ := t.locate(T)
	slope := 1 / T / t.dbin
	w.T = T
	for i, r := range t.Rates {
		w.k[i] = lerp(r, bin, tdef)
		w.dk[i] = (r[bin+1] - r[bin]) * slope
	}
	for i, r := range t.Cooling {
		w.c[i] = lerp(r, bin, tdef)
		w.dc[i] = (r[bin+1] - r[bin]) * slope
	}
	t.interpolateGamma(T, w)
}

// interpolateGamma fills only the molecular adiabatic indices.
func (t *Tables) interpolateGamma(T float64, w *coefficients) {
	bin, tdef, _ := t.locate(T)
	for i, r := range t.Gamma {
		w.gamma[i] = lerp(r, bin, tdef)
	}
}

// Value returns the named tabulated coefficient and its temperature
// derivative at temperature T.
func (t *Tables) Value(name string, T float64) (v, dvdT float64, err error) {
	var r []float64
	t.entries(func(n string, d *[]float64) {
		if n == name {
			r = *d
		}
	})
	if r == nil {
		return math.NaN(), math.NaN(), fmt.Errorf("primordial: no tabulated coefficient named %q", name)
	}
	bin, tdef, _ := t.locate(T)
	return lerp(r, bin, tdef), (r[bin+1] - r[bin]) / T / t.dbin, nil
}

// Temperatures returns the tabulated temperatures.
func (t *Tables) Temperatures() []float64 {
	o := make([]float64, TableLength)
	for i := range o {
		o[i] = math.Exp(t.lb + float64(i)*t.dbin)
	}
	return o
}
