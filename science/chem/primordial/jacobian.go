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

// speciesJacobian sets rows H2I through DE of J to the partial
// derivatives of speciesRHS with respect to the species, holding the
// rates k fixed.
func speciesJacobian(k *[numRates]float64, y *[NumSpecies]float64, J *[NumSpecies][NumSpecies]float64) {
	h2, h2p, h, hp, hm := y[H2I], y[H2II], y[HI], y[HII], y[HM]
	he, he2, he3, e := y[HeI], y[HeII], y[HeIII], y[DE]

	r := &J[H2I]
	r[H2I] = -k[k11]*hp - k[k12]*e - k[k13]*h + k[k21]*h*h
	r[H2II] = k[k10]*h + k[k19]*hm
	r[HI] = k[k08]*hm + k[k10]*h2p - k[k13]*h2 + 2*k[k21]*h2*h + 3*k[k22]*h*h
	r[HII] = -k[k11] * h2
	r[HM] = k[k08]*h + k[k19]*h2p
	r[DE] = -k[k12] * h2

	r = &J[H2II]
	r[H2I] = k[k11] * hp
	r[H2II] = -k[k10]*h - k[k18]*e - k[k19]*hm
	r[HI] = k[k09]*hp - k[k10]*h2p
	r[HII] = k[k09]*h + k[k11]*h2 + k[k17]*hm
	r[HM] = k[k17]*hp - k[k19]*h2p
	r[DE] = -k[k18] * h2p

	r = &J[HI]
	r[H2I] = k[k11]*hp + 2*k[k12]*e + 2*k[k13]*h - 2*k[k21]*h*h
	r[H2II] = -k[k10]*h + 2*k[k18]*e + k[k19]*hm
	r[HI] = -k[k01]*e - k[k07]*e - k[k08]*hm - k[k09]*hp - k[k10]*h2p + 2*k[k13]*h2 +
		k[k15]*hm - 4*k[k21]*h2*h - 6*k[k22]*h*h
	r[HII] = k[k02]*e - k[k09]*h + k[k11]*h2 + 2*k[k16]*hm
	r[HM] = -k[k08]*h + k[k14]*e + k[k15]*h + 2*k[k16]*hp + k[k19]*h2p
	r[DE] = -k[k01]*h + k[k02]*hp - k[k07]*h + 2*k[k12]*h2 + k[k14]*hm + 2*k[k18]*h2p

	r = &J[HII]
	r[H2I] = -k[k11] * hp
	r[H2II] = k[k10] * h
	r[HI] = k[k01]*e - k[k09]*hp + k[k10]*h2p
	r[HII] = -k[k02]*e - k[k09]*h - k[k11]*h2 - k[k16]*hm - k[k17]*hm
	r[HM] = -(k[k16] + k[k17]) * hp
	r[DE] = k[k01]*h - k[k02]*hp

	r = &J[HM]
	r[H2II] = -k[k19] * hm
	r[HI] = k[k07]*e - k[k08]*hm - k[k15]*hm
	r[HII] = -(k[k16] + k[k17]) * hm
	r[HM] = -k[k08]*h - k[k14]*e - k[k15]*h - k[k16]*hp - k[k17]*hp - k[k19]*h2p
	r[DE] = k[k07]*h - k[k14]*hm

	r = &J[HeI]
	r[HeI] = -k[k03] * e
	r[HeII] = k[k04] * e
	r[DE] = -k[k03]*he + k[k04]*he2

	r = &J[HeII]
	r[HeI] = k[k03] * e
	r[HeII] = -(k[k04] + k[k05]) * e
	r[HeIII] = k[k06] * e
	r[DE] = k[k03]*he - (k[k04]+k[k05])*he2 + k[k06]*he3

	r = &J[HeIII]
	r[HeII] = k[k05] * e
	r[HeIII] = -k[k06] * e
	r[DE] = k[k05]*he2 - k[k06]*he3

	r = &J[DE]
	r[H2II] = -k[k18] * e
	r[HI] = (k[k01]-k[k07])*e + (k[k08]+k[k15])*hm
	r[HII] = -k[k02]*e + k[k17]*hm
	r[HM] = (k[k08]+k[k15])*h + k[k14]*e + k[k17]*hp
	r[HeI] = k[k03] * e
	r[HeII] = (k[k05] - k[k04]) * e
	r[HeIII] = -k[k06] * e
	r[DE] = (k[k01]-k[k07])*h - k[k02]*hp + k[k03]*he + (k[k05]-k[k04])*he2 -
		k[k06]*he3 + k[k14]*hm - k[k18]*h2p
}

// energyJacobian sets the species entries of row to the partial
// derivatives of energyRHS at fixed temperature and returns the partial
// derivative of energyRHS with respect to temperature.
func (n *Network) energyJacobian(cell int, y *[NumSpecies]float64, w *coefficients, row *[NumSpecies]float64) (dEdT float64) {
	c, dc := &w.c, &w.dc
	co, ho, m := n.cieOda[cell], n.h2Oda[cell], n.mdensity[cell]
	e := n.energyTerms(y, w)
	de := y[DE]

	// Partials of L*D/(L+D) and R/(N+R).
	var hL, hD, sR, sN float64
	if s := e.L + e.D; s != 0 {
		hL, hD = e.D*e.D/(s*s), e.L*e.L/(s*s)
	}
	sat := saturation(e.R, e.N)
	if s := e.N + e.R; s != 0 {
		sR, sN = e.N/(s*s), -e.R/(s*s)
	}
	line := co * ho * y[H2I] * hD
	ce := co * de

	row[H2I] = -mwH2cie*c[cieCo]*co*m - co*ho*harmonic(e.L, e.D) - line*c[gaH2] +
		0.5*(sR*c[ncrd2]*e.M-sat*y[HI]*c[h2mcool])
	row[H2II] = 0
	row[HI] = -line*c[gaHI] - ce*(c[ceHI]+c[ciHI]) +
		0.5*(sR*c[ncrd1]*e.M+sat*(-y[H2I]*c[h2mcool]+3*y[HI]*y[HI]*c[h2mheat]))
	row[HII] = -line*c[gaHp] - ce*(c[reHII]+c[brem])
	row[HM] = 0
	row[HeI] = -line*c[gaHe] - ce*c[ciHeI]
	row[HeII] = -ce * (c[ceHeII] + c[ciHeII] + c[reHeII1] + c[reHeII2] +
		de*(c[ceHeI]+c[ciHeIS]) + c[brem])
	row[HeIII] = -ce * (c[reHeIII] + 4*c[brem])
	row[DE] = -line*c[gael] - co*(e.P+de*y[HeII]*(c[ceHeI]+c[ciHeIS]))

	dL := dc[h2lte]
	dD := y[H2I]*dc[gaH2] + y[HI]*dc[gaHI] + y[HII]*dc[gaHp] + y[HeI]*dc[gaHe] + de*dc[gael]
	dP := y[HI]*(dc[ceHI]+dc[ciHI]) + y[HII]*dc[reHII] + y[HeI]*dc[ciHeI] +
		y[HeII]*(dc[ceHeII]+dc[ciHeII]+dc[reHeII1]+dc[reHeII2]) +
		y[HeII]*de*(dc[ceHeI]+dc[ciHeIS]) + y[HeIII]*dc[reHeIII] +
		dc[brem]*(y[HII]+y[HeII]+4*y[HeIII]) +
		dc[compton]*e.zf4*(w.T-tCMB*e.zf1) + c[compton]*e.zf4
	dR := y[H2I]*dc[ncrd2] + y[HI]*dc[ncrd1]
	dN := dc[ncrn]
	dM := -y[H2I]*y[HI]*dc[h2mcool] + y[HI]*y[HI]*y[HI]*dc[h2mheat]

	return -mwH2cie*y[H2I]*dc[cieCo]*co*m -
		y[H2I]*co*ho*(hL*dL+hD*dD) -
		ce*dP +
		0.5*((sR*dR+sN*dN)*e.M+sat*dM)
}

// cellJacobian sets J to the Jacobian of the physical time derivative of
// cell with respect to its physical composition y. The internal energy
// column accounts for the dependence of every rate on temperature.
func (n *Network) cellJacobian(cell int, y *[NumSpecies]float64, w *coefficients, dTge float64, J *[NumSpecies][NumSpecies]float64) {
	*J = [NumSpecies][NumSpecies]float64{}
	speciesJacobian(&w.k, y, J)

	var dk [NumSpecies]float64
	speciesRHS(&w.dk, y, &dk)
	for r := 0; r < GE; r++ {
		J[r][GE] = dk[r] * dTge
	}

	im := n.invMdensity[cell]
	dEdT := n.energyJacobian(cell, y, w, &J[GE])
	for c := 0; c < GE; c++ {
		J[GE][c] *= im
	}
	J[GE][GE] = dEdT * dTge * im
}

// Jacobian sets the blocks of jac to the Jacobian of RHS with respect to
// the normalized chemistry state y. It updates the stored cell
// temperatures.
func (n *Network) Jacobian(t float64, y []float64, jac *chemhydro.BlockMatrix) error {
	if len(y) != n.ncells*NumSpecies || jac.Blocks != n.ncells || jac.N != NumSpecies {
		return chemhydro.Unrecoverable("primordial: jacobian", fmt.Errorf("state length %d or %d blocks of size %d does not match %d cells", len(y), jac.Blocks, jac.N, n.ncells))
	}
	p := jac.Pattern
	var bad int64
	chemhydro.ParallelFor(n.ncells, func(cell int) {
		var (
			phys [NumSpecies]float64
			w    coefficients
			J    [NumSpecies][NumSpecies]float64
		)
		n.physical(cell, y, &phys)
		T, dTge := n.temperature(&phys, n.ts[cell], &w)
		n.ts[cell], n.dtsGe[cell] = T, dTge
		n.Tables.interpolate(T, &w)
		n.cellJacobian(cell, &phys, &w, dTge, &J)

		j := cell * NumSpecies
		blk := jac.Block(cell)
		for r := 0; r < NumSpecies; r++ {
			for k := p.RowPtr[r]; k < p.RowPtr[r+1]; k++ {
				c := p.ColIdx[k]
				v := J[r][c] * n.invScale[j+r] * n.scale[j+c]
				if math.IsNaN(v) || math.IsInf(v, 0) {
					atomic.StoreInt64(&bad, int64(cell)+1)
				}
				blk[k] = v
			}
		}
	})
	if bad != 0 {
		return chemhydro.Recoverable("primordial: jacobian", fmt.Errorf("non-finite entry in cell %d", bad-1))
	}
	return nil
}
