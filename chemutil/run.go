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

package chemutil

import (
	"fmt"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/comm"
	"github.com/spatialmodel/chemhydro/imex"
	"github.com/spatialmodel/chemhydro/internal/hash"
	"github.com/spatialmodel/chemhydro/linsol"
	"github.com/spatialmodel/chemhydro/science/chem/primordial"
)

// Run runs the primordial blast simulation described by rc and returns
// the summary assembled on rank 0. Runs within this program start
// rc.NProcs ranks; runs spread over several programs join the group
// whose hub is at rc.Hub, and only rank 0 returns a summary.
func Run(rc *RunConfig, log logrus.FieldLogger) (*Summary, error) {
	var sum *Summary
	run := func(c comm.Communicator) error {
		l := log.WithField("rank", c.Rank())
		s, err := simulate(c, rc, l)
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			sum = s
		}
		return nil
	}
	if rc.Hub != "" {
		g, err := comm.NewRPCGroup(rc.Rank, rc.Size, rc.Hub)
		if err != nil {
			return nil, err
		}
		g.Log = log
		defer g.Close()
		if err := run(g); err != nil {
			return nil, err
		}
	} else if err := comm.Run(rc.NProcs, run); err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, nil
	}
	if rc.SummaryFile != "" {
		if err := sum.WriteFile(rc.SummaryFile); err != nil {
			return sum, err
		}
	}
	if rc.PlotFile != "" {
		if err := sum.Plot(rc.PlotFile); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// model holds the components of one rank's simulation.
type model struct {
	ext     chemhydro.Extents
	units   *chemhydro.Units
	tables  *primordial.Tables
	net     *primordial.Network
	state   *chemhydro.State
	driver  *imex.Driver
	solver  *linsol.BlockSolver
	stepper *imex.Stepper
	profile *chemhydro.Profile
}

// setup builds the model of one rank and initializes its state.
func setup(c comm.Communicator, rc *RunConfig, log logrus.FieldLogger) (*model, error) {
	procs, err := chemhydro.DimsCreate(c.Size(), rc.ProcGrid)
	if err != nil {
		return nil, err
	}
	m := &model{profile: new(chemhydro.Profile)}
	if m.ext, err = chemhydro.Decompose(rc.Grid, procs, c.Rank(), c.Size()); err != nil {
		return nil, err
	}
	if m.units, err = chemhydro.NewUnits(rc.MassUnits, rc.LengthUnits, rc.TimeUnits); err != nil {
		return nil, err
	}
	if m.tables, err = primordial.LoadTables(c, rc.TableFile, log); err != nil {
		return nil, err
	}
	ncells := m.ext.NumCells()
	if m.net, err = primordial.New(m.tables, ncells, rc.Network); err != nil {
		return nil, err
	}

	m.state = chemhydro.NewState(m.ext, primordial.NumSpecies, rc.Memory)
	blast := primordial.DefaultBlast()
	blast.Gamma = rc.Gamma
	if err = blast.Initialize(c, m.state, m.units, log); err != nil {
		return nil, err
	}

	var fluid imex.FluidRHS = imex.Quiescent{}
	if rc.EnergySource != "" {
		if fluid, err = imex.NewExpressionForcing(fluid, rc.EnergySource); err != nil {
			return nil, err
		}
	}
	if m.driver, err = imex.NewDriver(m.net, fluid, m.units, log); err != nil {
		return nil, err
	}
	m.driver.Profile = m.profile
	m.driver.RawEnergyCopy = rc.RawEnergyCopy
	if err = m.driver.Prepare(m.state); err != nil {
		return nil, err
	}

	if rc.Iterative {
		m.solver = linsol.NewIterativeSolver(c, ncells*primordial.NumSpecies, rc.MaxL, m.net.RHS, m.units.Time)
	} else {
		m.solver = linsol.NewDirectSolver(c, ncells, primordial.NumSpecies)
	}
	m.solver.Log = log
	m.solver.Profile = m.profile
	if m.stepper, err = imex.NewStepper(m.driver, m.solver, c, m.state, rc.Stepper); err != nil {
		return nil, err
	}

	if c.Rank() == 0 {
		log.WithFields(logrus.Fields{
			"grid":        [3]int{rc.Grid.NX, rc.Grid.NY, rc.Grid.NZ},
			"procs":       procs,
			"mode":        m.solver.Mode(),
			"memory":      rc.Memory,
			"tables":      m.tables.Fingerprint(),
			"energyUnits": m.units.Energy,
		}).Info("model set up")
	}
	return m, nil
}

// simulate runs the simulation on one rank.
func simulate(c comm.Communicator, rc *RunConfig, log logrus.FieldLogger) (*Summary, error) {
	m, err := setup(c, rc, log)
	if err != nil {
		return nil, err
	}
	defer m.solver.Free()

	sum := &Summary{
		Version:          chemhydro.Version,
		Ranks:            c.Size(),
		Grid:             [3]int{rc.Grid.NX, rc.Grid.NY, rc.Grid.NZ},
		ProcGrid:         [3]int{m.ext.NPX, m.ext.NPY, m.ext.NPZ},
		Mode:             m.solver.Mode().String(),
		Memory:           rc.Memory.String(),
		TableFingerprint: m.tables.Fingerprint(),
		T0:               rc.T0,
		Tf:               rc.Tf,

		ConfigFingerprint: hash.Hash(rc),
	}
	var cons chemhydro.Conservation
	record := func(t float64) error {
		o, err := m.output(c, t)
		if err != nil {
			return err
		}
		sum.Outputs = append(sum.Outputs, o)
		if c.Rank() == 0 {
			log.WithFields(logrus.Fields{
				"t":     t,
				"Tmin":  o.TMin,
				"Tmax":  o.TMax,
				"Tmean": o.TMean,
			}).Info("output")
		}
		if !rc.ShowStats {
			return nil
		}
		rms, err := chemhydro.FieldRMS(c, m.state)
		if err != nil {
			return err
		}
		rep, err := cons.Check(c, m.state, m.units)
		if err != nil {
			return err
		}
		sum.Conservation = rep
		if c.Rank() == 0 {
			f := logrus.Fields{
				"mass":         rep.Mass,
				"energy":       rep.Energy,
				"massChange":   rep.MassChange,
				"energyChange": rep.EnergyChange,
			}
			for i, v := range rms {
				if i < int(chemhydro.Chemistry) {
					f["rms_"+chemhydro.Field(i).String()] = v
				} else {
					f["rms_"+primordial.SpeciesNames[i-int(chemhydro.Chemistry)]] = v
				}
			}
			log.WithFields(f).Info("field statistics")
		}
		return nil
	}

	if err := record(rc.T0); err != nil {
		return nil, err
	}
	t := rc.T0
	dt := (rc.Tf - rc.T0) / float64(rc.NOut)
	for iout := 1; iout <= rc.NOut; iout++ {
		tout := rc.T0 + float64(iout)*dt
		if iout == rc.NOut {
			tout = rc.Tf
		}
		if t, err = m.stepper.Evolve(m.state, t, tout); err != nil {
			return nil, fmt.Errorf("chemhydro: integrating to t=%g: %v", tout, err)
		}
		if c.Rank() == 0 {
			log.WithFields(m.stepper.Stats.Fields()).Debug("solver statistics")
		}
		if err := record(t); err != nil {
			return nil, err
		}
	}
	sum.Stats = m.stepper.Stats
	sum.Timers = m.profile.Seconds()
	if c.Rank() == 0 {
		log.WithFields(sum.Stats.Fields()).Info("final solver statistics")
		m.profile.Log(log)
	}
	return sum, nil
}

// output computes the temperature statistics of the current state over
// all processes.
func (m *model) output(c comm.Communicator, t float64) (Output, error) {
	temps := m.temperatures()
	// Each rank fills its own slot with its minimum, maximum and sum.
	buf := make([]float64, 4*c.Size())
	r := 4 * c.Rank()
	buf[r] = stats.StatsMin(temps)
	buf[r+1] = stats.StatsMax(temps)
	buf[r+2] = stats.StatsSum(temps)
	buf[r+3] = float64(len(temps))
	if err := c.AllreduceSum(buf); err != nil {
		return Output{}, fmt.Errorf("chemhydro: temperature statistics: %v", err)
	}
	mins := make([]float64, c.Size())
	maxs := make([]float64, c.Size())
	var total, n float64
	for i := 0; i < c.Size(); i++ {
		mins[i], maxs[i] = buf[4*i], buf[4*i+1]
		total += buf[4*i+2]
		n += buf[4*i+3]
	}
	return Output{
		Time:  t,
		TMin:  stats.StatsMin(mins),
		TMax:  stats.StatsMax(maxs),
		TMean: total / n,
	}, nil
}

// temperatures returns the temperature of every local cell.
func (m *model) temperatures() []float64 {
	chem := append([]float64(nil), m.state.Data(chemhydro.Chemistry)...)
	m.net.ApplyScaling(chem)
	temps := make([]float64, m.ext.NumCells())
	chemhydro.ParallelFor(len(temps), func(cell int) {
		temps[cell] = m.net.CellTemperature(chem[cell*primordial.NumSpecies : (cell+1)*primordial.NumSpecies])
	})
	return temps
}
