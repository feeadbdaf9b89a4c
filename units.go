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

	"github.com/ctessum/unit"
)

// Units relates code units to CGS units. Mass, Length and Time are the
// CGS values of one code unit; the remaining factors are derived from
// them.
type Units struct {
	Mass, Length, Time float64 // g, cm, s

	Density  float64 // g cm-3
	Velocity float64 // cm s-1
	Momentum float64 // g cm-2 s-1
	Energy   float64 // erg cm-3
}

// Conversions from SI to CGS for the derived quantities.
const (
	kgPerM3ToGPerCm3   = 1e-3
	mPerSToCmPerS      = 1e2
	kgPerM2SToGPerCm2S = 1e-1
	pascalToErgPerCm3  = 1e1
)

// NewUnits derives the code-unit conversion factors from the CGS values
// of one code unit of mass, length and time.
func NewUnits(mass, length, time float64) (*Units, error) {
	if !(mass > 0) || !(length > 0) || !(time > 0) {
		return nil, fmt.Errorf("chemhydro: units must be positive; have mass=%g, length=%g, time=%g", mass, length, time)
	}
	m := unit.New(mass*1e-3, unit.Kilogram)
	l := unit.New(length*1e-2, unit.Meter)
	t := unit.New(time, unit.Second)

	density := unit.Div(m, l, l, l)
	velocity := unit.Div(l, t)
	momentum := unit.Mul(density, velocity)
	energy := unit.Mul(density, velocity, velocity)

	checks := []struct {
		name string
		u    *unit.Unit
		d    unit.Dimensions
	}{
		{"density", density, unit.KilogramPerMeter3},
		{"velocity", velocity, unit.MeterPerSecond},
		{"momentum", momentum, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -1}},
		{"energy", energy, unit.Pascal},
	}
	for _, c := range checks {
		if err := c.u.Check(c.d); err != nil {
			return nil, fmt.Errorf("chemhydro: %s units: %v", c.name, err)
		}
	}
	return &Units{
		Mass:     mass,
		Length:   length,
		Time:     time,
		Density:  density.Value() * kgPerM3ToGPerCm3,
		Velocity: velocity.Value() * mPerSToCmPerS,
		Momentum: momentum.Value() * kgPerM2SToGPerCm2S,
		Energy:   energy.Value() * pascalToErgPerCm3,
	}, nil
}
