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
	"io"
	"math"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/imex"
	"github.com/spatialmodel/chemhydro/science/chem/primordial"
)

// RunConfig holds the validated settings of a simulation.
type RunConfig struct {
	TableFile string

	Grid     chemhydro.Grid
	ProcGrid [3]int

	T0, Tf float64
	NOut   int

	Gamma float64

	// CGS values of one code unit of mass, length and time.
	MassUnits, LengthUnits, TimeUnits float64

	Network primordial.Options
	Stepper imex.Options

	Iterative bool
	MaxL      int
	Memory    chemhydro.MemoryKind

	EnergySource  string
	RawEnergyCopy bool

	// NProcs is the number of in-process ranks. If Hub is set, this
	// program is instead rank Rank of a group of Size programs.
	NProcs     int
	Hub        string
	Rank, Size int

	ShowStats   bool
	SummaryFile string
	PlotFile    string
}

// NewRunConfig reads and checks the run settings in cfg.
func NewRunConfig(cfg *viper.Viper) (*RunConfig, error) {
	procs, err := toIntSlice(cfg.Get("procgrid"))
	if err != nil {
		return nil, fmt.Errorf("chemhydro: reading 'procgrid': %v", err)
	}
	pg, err := checkProcGrid(procs)
	if err != nil {
		return nil, err
	}
	mem, err := chemhydro.ParseMemoryKind(cfg.GetString("DeviceMemory"))
	if err != nil {
		return nil, err
	}
	rc := &RunConfig{
		TableFile: os.ExpandEnv(cfg.GetString("TableFile")),
		Grid: chemhydro.Grid{
			NX: cfg.GetInt("nx"), NY: cfg.GetInt("ny"), NZ: cfg.GetInt("nz"),
			XL: cfg.GetFloat64("xl"), XR: cfg.GetFloat64("xr"),
			YL: cfg.GetFloat64("yl"), YR: cfg.GetFloat64("yr"),
			ZL: cfg.GetFloat64("zl"), ZR: cfg.GetFloat64("zr"),
		},
		ProcGrid:    pg,
		T0:          cfg.GetFloat64("t0"),
		Tf:          cfg.GetFloat64("tf"),
		NOut:        cfg.GetInt("nout"),
		Gamma:       cfg.GetFloat64("gamma"),
		MassUnits:   cfg.GetFloat64("MassUnits"),
		LengthUnits: cfg.GetFloat64("LengthUnits"),
		TimeUnits:   cfg.GetFloat64("TimeUnits"),
		Network: primordial.Options{
			ClampNegative:        cfg.GetBool("ClampNegative"),
			TemperatureTolerance: cfg.GetFloat64("TemperatureTolerance"),
			Redshift:             cfg.GetFloat64("redshift"),
			DenseJacobian:        cfg.GetBool("DenseJacobian"),
		},
		Stepper: imex.Options{
			H:          cfg.GetFloat64("hmax"),
			MaxNef:     cfg.GetInt("maxnef"),
			MaxSteps:   cfg.GetInt("mxsteps"),
			MaxNIters:  cfg.GetInt("maxniters"),
			NLConvCoef: cfg.GetFloat64("nlconvcoef"),
			RelTol:     cfg.GetFloat64("rtol"),
			AbsTol:     cfg.GetFloat64("atol"),
		},
		Iterative:     cfg.GetBool("iterative"),
		MaxL:          cfg.GetInt("maxl"),
		Memory:        mem,
		EnergySource:  strings.TrimSpace(cfg.GetString("EnergySource")),
		RawEnergyCopy: cfg.GetBool("RawEnergyCopy"),
		NProcs:        cfg.GetInt("nprocs"),
		Hub:           cfg.GetString("hub"),
		Rank:          cfg.GetInt("rank"),
		Size:          cfg.GetInt("size"),
		ShowStats:     cfg.GetBool("showstats"),
		SummaryFile:   os.ExpandEnv(cfg.GetString("SummaryFile")),
		PlotFile:      os.ExpandEnv(cfg.GetString("PlotFile")),
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// Validate checks rc for errors.
func (rc *RunConfig) Validate() error {
	if rc.TableFile == "" {
		return fmt.Errorf("chemhydro: you need to specify a TableFile")
	}
	if err := rc.Grid.Validate(); err != nil {
		return err
	}
	if !(rc.Tf > rc.T0) {
		return fmt.Errorf("chemhydro: tf=%g but should be greater than t0=%g", rc.Tf, rc.T0)
	}
	if rc.NOut < 1 {
		return fmt.Errorf("chemhydro: nout=%d but should be >0", rc.NOut)
	}
	if !(rc.Gamma > 1) {
		return fmt.Errorf("chemhydro: gamma=%g but should be >1", rc.Gamma)
	}
	if rc.Network.TemperatureTolerance < 0 || math.IsNaN(rc.Network.TemperatureTolerance) {
		return fmt.Errorf("chemhydro: TemperatureTolerance=%g but should be >=0", rc.Network.TemperatureTolerance)
	}
	if rc.Network.Redshift < 0 {
		return fmt.Errorf("chemhydro: redshift=%g but should be >=0", rc.Network.Redshift)
	}
	if err := rc.Stepper.Validate(); err != nil {
		return err
	}
	if rc.Iterative && rc.MaxL < 1 {
		return fmt.Errorf("chemhydro: maxl=%d but should be >0", rc.MaxL)
	}
	if rc.Hub == "" {
		if rc.NProcs < 1 {
			return fmt.Errorf("chemhydro: nprocs=%d but should be >0", rc.NProcs)
		}
	} else if rc.Size < 1 || rc.Rank < 0 || rc.Rank >= rc.Size {
		return fmt.Errorf("chemhydro: rank=%d is invalid for size=%d", rc.Rank, rc.Size)
	}
	if _, err := chemhydro.NewUnits(rc.MassUnits, rc.LengthUnits, rc.TimeUnits); err != nil {
		return err
	}
	return nil
}

// toIntSlice converts a list option to integers. Values bound from
// command-line flags arrive in their string form, such as "[1,2,0]".
func toIntSlice(v interface{}) ([]int, error) {
	s, ok := v.(string)
	if !ok {
		return cast.ToIntSliceE(v)
	}
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	var o []int
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		i, err := cast.ToIntE(f)
		if err != nil {
			return nil, err
		}
		o = append(o, i)
	}
	return o, nil
}

// checkProcGrid converts a process grid option to three non-negative
// counts.
func checkProcGrid(p []int) ([3]int, error) {
	var o [3]int
	if len(p) != 3 {
		return o, fmt.Errorf("chemhydro: procgrid has %d entries but should have 3", len(p))
	}
	for i, v := range p {
		if v < 0 {
			return o, fmt.Errorf("chemhydro: procgrid entry %d is %d but should be >=0", i, v)
		}
		o[i] = v
	}
	return o, nil
}

// newLogger returns a logger writing to w at the named level.
func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("chemhydro: LogLevel: %v", err)
	}
	log := logrus.New()
	log.Out = w
	log.Level = lvl
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return log, nil
}
