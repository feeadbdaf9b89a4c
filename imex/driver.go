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

package imex

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/chemhydro"
)

// Preparer is implemented by chemistry networks that must record scale
// factors from the physical initial state before the first call. Prepare
// overwrites the chemistry block with its normalized form.
type Preparer interface {
	Prepare(y []float64) error
}

// RHSCache receives the implicit right-hand side after every evaluation
// so that a matrix-free linear operator can difference against it.
type RHSCache interface {
	CacheRHS(f0 []float64)
}

// Driver provides the right-hand side, Jacobian and post-processing
// callbacks of an IMEX integrator for a chemistry network coupled to a
// fluid. The chemistry block of every State passed to it is normalized;
// the fluid fields are in code units.
type Driver struct {
	Chem  Chemistry
	Fluid FluidRHS
	Units *chemhydro.Units

	// Cache, if not nil, is updated with every implicit right-hand side.
	Cache RHSCache

	// RawEnergyCopy makes ExplicitRHS store the fluid total energy
	// derivative in the chemistry internal energy slot as is, without
	// converting it to physical units and normalizing it.
	RawEnergyCopy bool

	Profile *chemhydro.Profile
	Log     logrus.FieldLogger

	Counters Counters
}

// NewDriver returns a driver for chem and fluid. A nil fluid is
// Quiescent.
func NewDriver(chem Chemistry, fluid FluidRHS, u *chemhydro.Units, log logrus.FieldLogger) (*Driver, error) {
	if chem == nil {
		return nil, fmt.Errorf("imex: nil chemistry")
	}
	if u == nil {
		return nil, fmt.Errorf("imex: nil units")
	}
	if err := chem.Pattern().Validate(); err != nil {
		return nil, fmt.Errorf("imex: chemistry Jacobian pattern: %v", err)
	}
	if fluid == nil {
		fluid = Quiescent{}
	}
	if log == nil {
		l := logrus.New()
		l.Level = logrus.WarnLevel
		log = l
	}
	return &Driver{Chem: chem, Fluid: fluid, Units: u, Log: log}, nil
}

// Prepare normalizes the physical chemistry block of y and reconciles the
// total energy with it. It must be called once before integration.
func (d *Driver) Prepare(y *chemhydro.State) error {
	if err := d.checkState(y); err != nil {
		return err
	}
	p, ok := d.Chem.(Preparer)
	if ok {
		if err := p.Prepare(y.Data(chemhydro.Chemistry)); err != nil {
			return err
		}
	}
	y.Buffer(chemhydro.Chemistry).CopyToDevice()
	return d.PostprocessStep(0, y)
}

func (d *Driver) checkState(y *chemhydro.State) error {
	if y.NumSpecies != d.Chem.NumSpecies() {
		return chemhydro.Unrecoverable("imex", fmt.Errorf("state has %d chemistry species; chemistry has %d", y.NumSpecies, d.Chem.NumSpecies()))
	}
	return nil
}

// ImplicitRHS sets ydot to the chemistry time derivative of y in code
// time units. The fluid fields of ydot are zero.
func (d *Driver) ImplicitRHS(t float64, y, ydot *chemhydro.State) error {
	defer d.Profile.Start(chemhydro.RHSFast)()
	d.Counters.ImplicitRHS++
	if err := d.checkState(y); err != nil {
		return err
	}
	ydot.Zero()
	yb, fb := y.Buffer(chemhydro.Chemistry), ydot.Buffer(chemhydro.Chemistry)
	yb.CopyToDevice()
	fb.CopyToDevice()
	f := fb.Device()
	if err := d.Chem.RHS(t*d.Units.Time, yb.Device(), f); err != nil {
		return err
	}
	tu := d.Units.Time
	for i := range f {
		f[i] *= tu
	}
	fb.CopyFromDevice()
	if d.Cache != nil {
		d.Cache.CacheRHS(fb.HostData())
	}
	return nil
}

// ImplicitJacobian sets J to the Jacobian of ImplicitRHS at y.
func (d *Driver) ImplicitJacobian(t float64, y *chemhydro.State, J *chemhydro.BlockMatrix) error {
	defer d.Profile.Start(chemhydro.JacFast)()
	d.Counters.Jacobian++
	if err := d.checkState(y); err != nil {
		return err
	}
	yb := y.Buffer(chemhydro.Chemistry)
	yb.CopyToDevice()
	if err := d.Chem.Jacobian(t*d.Units.Time, yb.Device(), J); err != nil {
		return err
	}
	J.Scale(d.Units.Time)
	return nil
}

// physicalChemistry converts the host chemistry block of y to physical
// units and returns the function that converts it back.
func (d *Driver) physicalChemistry(y *chemhydro.State) (restore func()) {
	chem := y.Data(chemhydro.Chemistry)
	d.Chem.ApplyScaling(chem)
	return func() { d.Chem.UnapplyScaling(chem) }
}

// totalEnergy sets the total energy of y from the physical internal
// energy in its chemistry block and its kinetic energy.
func (d *Driver) totalEnergy(y *chemhydro.State) {
	rho, et := y.Data(chemhydro.Density), y.Data(chemhydro.TotalEnergy)
	mx, my, mz := y.Data(chemhydro.MomentumX), y.Data(chemhydro.MomentumY), y.Data(chemhydro.MomentumZ)
	chem := y.Data(chemhydro.Chemistry)
	ns, ge := y.NumSpecies, d.Chem.EnergyIndex()
	ieu := 1 / d.Units.Energy
	chemhydro.ParallelFor(len(et), func(i int) {
		e := chem[i*ns+ge] * ieu
		if rho[i] != 0 {
			e += 0.5 / rho[i] * (mx[i]*mx[i] + my[i]*my[i] + mz[i]*mz[i])
		}
		et[i] = e
	})
}

// ExplicitRHS sets ydot to the fluid time derivative of y. The change in
// total energy computed by the fluid is moved to the chemistry internal
// energy, and the total energy derivative is zero, since the total energy
// is derived from the chemistry after every step.
func (d *Driver) ExplicitRHS(t float64, y, ydot *chemhydro.State) error {
	defer d.Profile.Start(chemhydro.RHSSlow)()
	d.Counters.ExplicitRHS++
	if err := d.checkState(y); err != nil {
		return err
	}
	ydot.Zero()

	defer d.physicalChemistry(y)()
	d.totalEnergy(y)
	if err := d.Fluid.FluidRHS(t, y, ydot); err != nil {
		return err
	}

	etdot := ydot.Data(chemhydro.TotalEnergy)
	chemdot := ydot.Data(chemhydro.Chemistry)
	ns, ge := y.NumSpecies, d.Chem.EnergyIndex()
	for i := range chemdot {
		chemdot[i] = 0
	}
	if d.RawEnergyCopy {
		for i, v := range etdot {
			chemdot[i*ns+ge] = v
			etdot[i] = 0
		}
	} else {
		for i, v := range etdot {
			chemdot[i*ns+ge] = v * d.Units.Energy
			etdot[i] = 0
		}
		d.Chem.UnapplyScaling(chemdot)
	}
	ydot.Buffer(chemhydro.Chemistry).CopyToDevice()
	return nil
}

// PostprocessStep recomputes the total energy of y from its chemistry
// internal energy and momentum. It is called after every accepted step.
func (d *Driver) PostprocessStep(t float64, y *chemhydro.State) error {
	defer d.Profile.Start(chemhydro.PostFast)()
	d.Counters.Postprocess++
	if err := d.checkState(y); err != nil {
		return err
	}
	defer d.physicalChemistry(y)()
	d.totalEnergy(y)
	return nil
}
