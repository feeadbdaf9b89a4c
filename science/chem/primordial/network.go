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

	"github.com/spatialmodel/chemhydro"
)

// Options adjust the behavior of a Network.
type Options struct {
	// ClampNegative replaces negative species abundances with zero before
	// evaluating rates.
	ClampNegative bool

	// TemperatureTolerance, if positive, ends the temperature iteration
	// once the relative change in temperature is below it. Otherwise the
	// iteration always runs maxTemperatureIterations times.
	TemperatureTolerance float64

	// Redshift is the cosmological redshift used for Compton cooling
	// against the microwave background.
	Redshift float64

	// DenseJacobian stores full blocks instead of the sparse pattern.
	DenseJacobian bool
}

// Network evaluates the chemistry right-hand side and Jacobian for a
// fixed set of grid cells. The chemistry state it operates on is
// normalized: the physical value of entry i is y[i]*scale[i], where the
// scale factors are set by Prepare.
type Network struct {
	Tables *Tables
	Options

	ncells          int
	scale, invScale []float64

	// Per-cell values fixed by Prepare.
	mdensity, invMdensity []float64
	cieOda, h2Oda         []float64

	// Per-cell temperature and its derivative with respect to internal
	// energy from the latest evaluation. The temperature seeds the next
	// solve in the same cell.
	ts, dtsGe []float64

	pattern chemhydro.Pattern
}

// New creates a network for ncells cells that uses tables t.
func New(t *Tables, ncells int, opts Options) (*Network, error) {
	if t == nil {
		return nil, fmt.Errorf("primordial: nil tables")
	}
	if ncells < 1 {
		return nil, fmt.Errorf("primordial: number of cells %d must be >0", ncells)
	}
	if t.idbin == 0 {
		if err := t.init(); err != nil {
			return nil, err
		}
	}
	n := &Network{
		Tables:      t,
		Options:     opts,
		ncells:      ncells,
		scale:       make([]float64, ncells*NumSpecies),
		invScale:    make([]float64, ncells*NumSpecies),
		mdensity:    make([]float64, ncells),
		invMdensity: make([]float64, ncells),
		cieOda:      make([]float64, ncells),
		h2Oda:       make([]float64, ncells),
		ts:          make([]float64, ncells),
		dtsGe:       make([]float64, ncells),
	}
	if opts.DenseJacobian {
		n.pattern = chemhydro.DensePattern(NumSpecies)
	} else {
		n.pattern = SparsePattern()
	}
	for i := range n.scale {
		n.scale[i], n.invScale[i] = 1, 1
	}
	for i := range n.ts {
		n.ts[i] = initialTemperature
	}
	return n, nil
}

// NumSpecies returns the number of chemistry values per cell.
func (n *Network) NumSpecies() int { return NumSpecies }

// NumCells returns the number of cells.
func (n *Network) NumCells() int { return n.ncells }

// EnergyIndex returns the per-cell index of the internal energy.
func (n *Network) EnergyIndex() int { return GE }

// Pattern returns the nonzero layout of each Jacobian block.
func (n *Network) Pattern() chemhydro.Pattern { return n.pattern }

// Prepare takes the physical chemistry state y, records the per-entry
// scale factors and per-cell density factors, and overwrites y with its
// normalized form. Species are number densities [cm-3] and the internal
// energy is specific [erg g-1].
func (n *Network) Prepare(y []float64) error {
	if len(y) != n.ncells*NumSpecies {
		return fmt.Errorf("primordial: chemistry state has %d values; it should have %d", len(y), n.ncells*NumSpecies)
	}
	for cell := 0; cell < n.ncells; cell++ {
		j := cell * NumSpecies
		m := mh * (mwH2*(math.Abs(y[j+H2I])+math.Abs(y[j+H2II])) +
			mwH*(math.Abs(y[j+HI])+math.Abs(y[j+HII])+math.Abs(y[j+HM])) +
			mwHe*(math.Abs(y[j+HeI])+math.Abs(y[j+HeII])+math.Abs(y[j+HeIII])))
		if !(m > 0) || math.IsInf(m, 0) {
			return fmt.Errorf("primordial: cell %d has invalid mass density %g", cell, m)
		}
		for s := 0; s < NumSpecies; s++ {
			sc := math.Abs(y[j+s])
			if sc == 0 {
				sc = 1
			}
			n.scale[j+s], n.invScale[j+s] = sc, 1/sc
			y[j+s] /= sc
		}
		n.mdensity[cell], n.invMdensity[cell] = m, 1/m
		tau := math.Max(math.Pow(m/cieDensityScale, 2.8), 1e-5)
		n.cieOda[cell] = math.Min(1, (1-math.Exp(-tau))/tau)
		n.h2Oda[cell] = math.Min(1, math.Pow(m/h2DensityScale, -0.45))
		n.ts[cell] = initialTemperature
	}
	return nil
}

// ApplyScaling converts a normalized chemistry state to physical units
// in place.
func (n *Network) ApplyScaling(y []float64) {
	for i := range y {
		y[i] *= n.scale[i]
	}
}

// UnapplyScaling converts a physical chemistry state to normalized units
// in place.
func (n *Network) UnapplyScaling(y []float64) {
	for i := range y {
		y[i] *= n.invScale[i]
	}
}

// Scale returns the scale factor of every chemistry entry.
func (n *Network) Scale() []float64 { return n.scale }

// Temperature returns the temperature of cell from the latest
// evaluation.
func (n *Network) Temperature(cell int) float64 { return n.ts[cell] }

// Temperatures returns a copy of every cell temperature.
func (n *Network) Temperatures() []float64 {
	return append([]float64(nil), n.ts...)
}

// MassDensity returns the mass density [g cm-3] of cell recorded by
// Prepare.
func (n *Network) MassDensity(cell int) float64 { return n.mdensity[cell] }

// physical loads the physical composition of cell from the normalized
// state y.
func (n *Network) physical(cell int, y []float64, p *[NumSpecies]float64) {
	j := cell * NumSpecies
	for s := range p {
		p[s] = y[j+s] * n.scale[j+s]
	}
	if n.ClampNegative {
		for s := 0; s < GE; s++ {
			if p[s] < 0 {
				p[s] = 0
			}
		}
	}
}
