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
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/comm"
)

// Mass-fraction thresholds of the initial composition.
const (
	tinyFraction  = 1e-40
	smallFraction = 1e-12
	traceFraction = 1e-3
)

// Blast describes the primordial blast problem: a quiescent gas with
// random Gaussian density clumps and a hot, dense Gaussian region in
// the domain center.
type Blast struct {
	ClumpsPerProc    int
	MinClumpRadius   float64 // cells
	MaxClumpRadius   float64 // cells
	MaxClumpStrength float64 // density multiplier

	T0       float64 // K, background temperature
	Density0 float64 // g cm-3, background density

	Overdensity     float64    // multiple of Density0
	Overtemperature float64    // multiple of T0
	Radius          float64    // fraction of the smallest domain extent
	Center          [3]float64 // fraction of the domain extent

	HydrogenFraction float64
	Gamma            float64
}

// DefaultBlast returns the standard blast problem.
func DefaultBlast() Blast {
	return Blast{
		ClumpsPerProc:    10,
		MinClumpRadius:   3,
		MaxClumpRadius:   6,
		MaxClumpStrength: 10,
		T0:               10,
		Density0:         100 * mh,
		Overdensity:      10,
		Overtemperature:  5,
		Radius:           0.1,
		Center:           [3]float64{0.5, 0.5, 0.5},
		HydrogenFraction: 0.76,
		Gamma:            gammaA,
	}
}

// Clump is a Gaussian density perturbation. Radius is in cells.
type Clump struct {
	X, Y, Z  float64
	Radius   float64
	Strength float64
}

// Clumps generates the density clumps on process 0 and shares them with
// every process in c. The random sequence depends only on the group size.
func (b Blast) Clumps(c comm.Communicator, g chemhydro.Grid) ([]Clump, error) {
	n := b.ClumpsPerProc * c.Size()
	buf := make([]float64, 5*n)
	if c.Rank() == 0 {
		r := rand.New(rand.NewSource(int64(c.Size())))
		uniform := func(lo, hi float64) float64 { return lo + (hi-lo)*r.Float64() }
		for i := 0; i < n; i++ {
			buf[5*i] = uniform(g.XL, g.XR)
			buf[5*i+1] = uniform(g.YL, g.YR)
			buf[5*i+2] = uniform(g.ZL, g.ZR)
			buf[5*i+3] = uniform(b.MinClumpRadius, b.MaxClumpRadius)
			buf[5*i+4] = uniform(0, b.MaxClumpStrength)
		}
	}
	if err := c.Bcast(0, buf); err != nil {
		return nil, fmt.Errorf("primordial: broadcasting clumps: %v", err)
	}
	clumps := make([]Clump, n)
	for i := range clumps {
		clumps[i] = Clump{X: buf[5*i], Y: buf[5*i+1], Z: buf[5*i+2], Radius: buf[5*i+3], Strength: buf[5*i+4]}
	}
	return clumps, nil
}

// MassComposition converts the species mass densities m [g cm-3] of H2I
// through HeIII at temperature T into a physical chemistry block: number
// densities [cm-3], a charge-neutral electron density, and the specific
// internal energy [erg g-1] of an ideal gas with adiabatic index gamma.
// Entries DE and GE of m are ignored.
func MassComposition(m *[NumSpecies]float64, T, gamma float64) [NumSpecies]float64 {
	weights := [GE]float64{mwH2 * mwH, mwH2 * mwH, mwH, mwH, mwH, mwHe, mwHe, mwHe}
	var y [NumSpecies]float64
	var density, ndens float64
	for s := 0; s < DE; s++ {
		y[s] = m[s] / (weights[s] * mh)
		density += m[s]
		ndens += y[s]
	}
	y[DE] = y[HII] + y[HeII] + 2*y[HeIII] - y[HM] + y[H2II]
	y[GE] = kbInit * T * ndens / (density * (gamma - 1))
	return y
}

// composition returns the species mass densities of gas with total
// density rho. Gas inside the blast region is almost fully atomic and
// neutral.
func (b Blast) composition(rho float64, inside bool) [NumSpecies]float64 {
	var m [NumSpecies]float64
	trace, ion := traceFraction*rho, traceFraction*rho
	if inside {
		trace, ion = tinyFraction*rho, smallFraction*rho
	}
	m[H2I], m[H2II], m[HM] = trace, trace, trace
	m[HII], m[HeII], m[HeIII] = ion, ion, ion
	m[HeI] = (1-b.HydrogenFraction)*rho - m[HeII] - m[HeIII]
	m[HI] = rho - (m[H2I] + m[H2II] + m[HII] + m[HM] + m[HeI] + m[HeII] + m[HeIII])
	return m
}

// Initialize fills the local part of st with the blast problem. Fluid
// fields are in code units and the chemistry block is physical. The
// total energy is the chemistry internal energy converted with the code
// energy unit, as the fluid and chemistry energies are reconciled after
// every step.
func (b Blast) Initialize(c comm.Communicator, st *chemhydro.State, u *chemhydro.Units, log logrus.FieldLogger) error {
	if st.NumSpecies != NumSpecies {
		return fmt.Errorf("primordial: state has %d chemistry species; want %d", st.NumSpecies, NumSpecies)
	}
	ext := st.Ext
	clumps, err := b.Clumps(c, ext.Grid)
	if err != nil {
		return err
	}
	dx := ext.Dx()
	cx := ext.XL + b.Center[0]*(ext.XR-ext.XL)
	cy := ext.YL + b.Center[1]*(ext.YR-ext.YL)
	cz := ext.ZL + b.Center[2]*(ext.ZR-ext.ZL)
	cr := b.Radius * math.Min(ext.XR-ext.XL, math.Min(ext.YR-ext.YL, ext.ZR-ext.ZL))
	if c.Rank() == 0 && log != nil {
		for i, cl := range clumps {
			log.WithFields(logrus.Fields{
				"clump": i, "x": cl.X, "y": cl.Y, "z": cl.Z,
				"radius": cl.Radius, "strength": cl.Strength,
			}).Debug("density clump")
		}
		log.WithFields(logrus.Fields{
			"clumps":          len(clumps),
			"overdensity":     b.Overdensity,
			"overtemperature": b.Overtemperature,
			"radius":          cr,
			"center":          [3]float64{cx, cy, cz},
		}).Info("initializing primordial blast")
	}

	rho, et := st.Data(chemhydro.Density), st.Data(chemhydro.TotalEnergy)
	mx, my, mz := st.Data(chemhydro.MomentumX), st.Data(chemhydro.MomentumY), st.Data(chemhydro.MomentumZ)
	chem := st.Data(chemhydro.Chemistry)
	for k := 0; k < ext.LNZ; k++ {
		for j := 0; j < ext.LNY; j++ {
			for i := 0; i < ext.LNX; i++ {
				x, y, z := ext.Center(i, j, k)
				density := 1.
				for _, cl := range clumps {
					r := cl.Radius * dx
					rsq := (x-cl.X)*(x-cl.X) + (y-cl.Y)*(y-cl.Y) + (z-cl.Z)*(z-cl.Z)
					density += cl.Strength * math.Exp(-2*rsq/(r*r))
				}
				density *= b.Density0

				rsq := (x-cx)*(x-cx) + (y-cy)*(y-cy) + (z-cz)*(z-cz)
				g := math.Exp(-2 * rsq / (cr * cr))
				density += b.Density0 * b.Overdensity * g
				T := b.T0 + b.T0*b.Overtemperature*g

				m := b.composition(density, rsq/(cr*cr) < 2)
				comp := MassComposition(&m, T, b.Gamma)

				cell := ext.Cell(i, j, k)
				copy(chem[cell*NumSpecies:(cell+1)*NumSpecies], comp[:])
				rho[cell] = density / u.Density
				mx[cell], my[cell], mz[cell] = 0, 0, 0
				et[cell] = comp[GE] / u.Energy
			}
		}
	}
	st.Buffer(chemhydro.Chemistry).CopyToDevice()
	for f := chemhydro.Density; f <= chemhydro.TotalEnergy; f++ {
		st.Buffer(f).CopyToDevice()
	}
	return nil
}
