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
	"sync/atomic"

	"github.com/spatialmodel/chemhydro"
)

// mwH2cie is the molecular weight factor of collision-induced emission.
const mwH2cie = 2 * mwH

// speciesRHS sets the time derivatives of the species in y (every entry
// but the internal energy) given the reaction rates k. The result is
// linear in k.
func speciesRHS(k *[numRates]float64, y, f *[NumSpecies]float64) {
	h2, h2p, h, hp, hm := y[H2I], y[H2II], y[HI], y[HII], y[HM]
	he, he2, he3, e := y[HeI], y[HeII], y[HeIII], y[DE]

	f[H2I] = k[k08]*h*hm + k[k10]*h2p*h - k[k11]*h2*hp - k[k12]*h2*e - k[k13]*h2*h +
		k[k19]*h2p*hm + k[k21]*h2*h*h + k[k22]*h*h*h
	f[H2II] = k[k09]*h*hp - k[k10]*h2p*h + k[k11]*h2*hp + k[k17]*hp*hm - k[k18]*h2p*e -
		k[k19]*h2p*hm
	f[HI] = -k[k01]*h*e + k[k02]*hp*e - k[k07]*h*e - k[k08]*h*hm - k[k09]*h*hp -
		k[k10]*h2p*h + k[k11]*h2*hp + 2*k[k12]*h2*e + 2*k[k13]*h2*h + k[k14]*hm*e +
		k[k15]*h*hm + 2*k[k16]*hp*hm + 2*k[k18]*h2p*e + k[k19]*h2p*hm -
		2*k[k21]*h2*h*h - 2*k[k22]*h*h*h
	f[HII] = k[k01]*h*e - k[k02]*hp*e - k[k09]*h*hp + k[k10]*h2p*h - k[k11]*h2*hp -
		k[k16]*hp*hm - k[k17]*hp*hm
	f[HM] = k[k07]*h*e - k[k08]*h*hm - k[k14]*hm*e - k[k15]*h*hm - k[k16]*hp*hm -
		k[k17]*hp*hm - k[k19]*h2p*hm
	f[HeI] = -k[k03]*he*e + k[k04]*he2*e
	f[HeII] = k[k03]*he*e - k[k04]*he2*e - k[k05]*he2*e + k[k06]*he3*e
	f[HeIII] = k[k05]*he2*e - k[k06]*he3*e
	f[DE] = k[k01]*h*e - k[k02]*hp*e + k[k03]*he*e - k[k04]*he2*e + k[k05]*he2*e -
		k[k06]*he3*e - k[k07]*h*e + k[k08]*h*hm + k[k14]*hm*e + k[k15]*h*hm +
		k[k17]*hp*hm - k[k18]*h2p*e
}

// energyTerms holds the intermediate quantities of the net cooling rate
// of one cell.
type energyTerms struct {
	zf1, zf4 float64

	// Molecular hydrogen line cooling: L*D/(L+D)
	L, D float64
	// Atomic cooling and heating, without the electron and optical depth
	// factors.
	P float64
	// Formation heating: 0.5*R/(N+R)*M
	R, N, M float64
}

func (n *Network) energyTerms(y *[NumSpecies]float64, w *coefficients) energyTerms {
	c := &w.c
	var e energyTerms
	e.zf1 = 1 + n.Redshift
	e.zf4 = e.zf1 * e.zf1 * e.zf1 * e.zf1
	e.L = c[h2lte]
	e.D = y[H2I]*c[gaH2] + y[HI]*c[gaHI] + y[HII]*c[gaHp] + y[HeI]*c[gaHe] + y[DE]*c[gael]
	e.P = y[HI]*(c[ceHI]+c[ciHI]) + y[HII]*c[reHII] + y[HeI]*c[ciHeI] +
		y[HeII]*(c[ceHeII]+c[ciHeII]+c[reHeII1]+c[reHeII2]) +
		y[HeII]*y[DE]*(c[ceHeI]+c[ciHeIS]) + y[HeIII]*c[reHeIII] +
		c[brem]*(y[HII]+y[HeII]+4*y[HeIII]) +
		c[compton]*e.zf4*(w.T-tCMB*e.zf1)
	e.R = y[H2I]*c[ncrd2] + y[HI]*c[ncrd1]
	e.N = c[ncrn]
	e.M = -y[H2I]*y[HI]*c[h2mcool] + y[HI]*y[HI]*y[HI]*c[h2mheat]
	return e
}

// harmonic returns L*D/(L+D), which is zero when both are zero.
func harmonic(L, D float64) float64 {
	if L+D == 0 {
		return 0
	}
	return L * D / (L + D)
}

// saturation returns R/(N+R), which is zero when both are zero.
func saturation(R, N float64) float64 {
	if N+R == 0 {
		return 0
	}
	return R / (N + R)
}

// energyRHS returns the net volumetric heating rate [erg cm-3 s-1] of the
// physical composition y in cell.
func (n *Network) energyRHS(cell int, y *[NumSpecies]float64, w *coefficients) float64 {
	co, ho := n.cieOda[cell], n.h2Oda[cell]
	e := n.energyTerms(y, w)
	return -mwH2cie*y[H2I]*w.c[cieCo]*co*n.mdensity[cell] -
		y[H2I]*co*ho*harmonic(e.L, e.D) -
		co*y[DE]*e.P +
		0.5*saturation(e.R, e.N)*e.M
}

// cellRHS sets the physical time derivative f of the physical
// composition y in cell. w must hold the coefficients at the cell
// temperature.
func (n *Network) cellRHS(cell int, y, f *[NumSpecies]float64, w *coefficients) {
	speciesRHS(&w.k, y, f)
	f[GE] = n.energyRHS(cell, y, w) * n.invMdensity[cell]
}

// RHS sets ydot to the time derivative of the normalized chemistry state
// y. It updates the stored cell temperatures.
func (n *Network) RHS(t float64, y, ydot []float64) error {
	if len(y) != n.ncells*NumSpecies || len(ydot) != len(y) {
		return chemhydro.Unrecoverable("primordial: rhs", fmt.Errorf("state length %d/%d does not match %d cells", len(y), len(ydot), n.ncells))
	}
	var bad int64
	chemhydro.ParallelFor(n.ncells, func(cell int) {
		var p, f [NumSpecies]float64
		var w coefficients
		n.physical(cell, y, &p)
		T, dTge := n.temperature(&p, n.ts[cell], &w)
		n.ts[cell], n.dtsGe[cell] = T, dTge
		n.Tables.interpolate(T, &w)
		n.cellRHS(cell, &p, &f, &w)
		j := cell * NumSpecies
		for s, v := range f {
			v *= n.invScale[j+s]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				atomic.StoreInt64(&bad, int64(cell)+1)
			}
			ydot[j+s] = v
		}
	})
	if bad != 0 {
		return chemhydro.Recoverable("primordial: rhs", fmt.Errorf("non-finite time derivative in cell %d", bad-1))
	}
	return nil
}
