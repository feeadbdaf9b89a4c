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
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/comm"
	"github.com/spatialmodel/chemhydro/linsol"
)

// Options control a Stepper.
type Options struct {
	// H is the largest step, in code time units.
	H float64

	// MaxNef is the largest number of failed attempts of a single step.
	MaxNef int

	// MaxSteps is the largest number of steps in one call to Evolve.
	MaxSteps int

	// MaxNIters is the largest number of Newton iterations per attempt.
	MaxNIters int

	// NLConvCoef is the Newton convergence threshold on the weighted
	// norm of the correction.
	NLConvCoef float64

	RelTol, AbsTol float64
}

// DefaultOptions returns the default stepper options.
func DefaultOptions() Options {
	return Options{
		H:          1e-3,
		MaxNef:     10,
		MaxSteps:   100000,
		MaxNIters:  4,
		NLConvCoef: 0.1,
		RelTol:     1e-4,
		AbsTol:     1e-9,
	}
}

// Validate checks the options for errors.
func (o Options) Validate() error {
	switch {
	case !(o.H > 0):
		return fmt.Errorf("imex: step size %g must be >0", o.H)
	case o.MaxNef < 0:
		return fmt.Errorf("imex: maxnef=%d must be >=0", o.MaxNef)
	case o.MaxSteps < 1:
		return fmt.Errorf("imex: mxsteps=%d must be >0", o.MaxSteps)
	case o.MaxNIters < 1:
		return fmt.Errorf("imex: maxniters=%d must be >0", o.MaxNIters)
	case !(o.NLConvCoef > 0):
		return fmt.Errorf("imex: nlconvcoef=%g must be >0", o.NLConvCoef)
	case o.RelTol < 0 || o.AbsTol < 0 || o.RelTol+o.AbsTol == 0:
		return fmt.Errorf("imex: invalid tolerances rtol=%g, atol=%g", o.RelTol, o.AbsTol)
	}
	return nil
}

// Stats are the cumulative solver statistics of a Stepper.
type Stats struct {
	Steps        int `toml:"steps"`
	Attempts     int `toml:"step_attempts"`
	FeEvals      int `toml:"fe_evals"`
	FiEvals      int `toml:"fi_evals"`
	StepFails    int `toml:"step_fails"`
	NewtonIters  int `toml:"newton_iters"`
	NewtonFails  int `toml:"newton_fails"`
	LinSetups    int `toml:"lin_setups"`
	JacEvals     int `toml:"jac_evals"`
	LinIters     int `toml:"lin_iters"`
	LinConvFails int `toml:"lin_conv_fails"`
	FDEvals      int `toml:"fd_rhs_evals"`
}

// Fields returns s as logging fields.
func (s Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"steps":        s.Steps,
		"attempts":     s.Attempts,
		"fe":           s.FeEvals,
		"fi":           s.FiEvals,
		"stepFails":    s.StepFails,
		"newtonIters":  s.NewtonIters,
		"newtonFails":  s.NewtonFails,
		"linSetups":    s.LinSetups,
		"jacEvals":     s.JacEvals,
		"linIters":     s.LinIters,
		"linConvFails": s.LinConvFails,
		"fdEvals":      s.FDEvals,
	}
}

// Stepper advances a State with fixed-step IMEX Euler: the explicit
// right-hand side is integrated with forward Euler and the implicit
// right-hand side with backward Euler. The backward Euler stage is solved
// with a Newton iteration whose linear systems are solved by a
// linsol.BlockSolver.
type Stepper struct {
	Driver *Driver
	Solver *linsol.BlockSolver
	Comm   comm.Communicator
	Options

	Log   logrus.FieldLogger
	Stats Stats

	t, h float64

	// ycur is the Newton iterate and base is y + h*fe.
	ycur, base, fe, fi, b, x, w *chemhydro.State
	jac                         *chemhydro.BlockMatrix
}

// NewStepper returns a stepper for states shaped like y. The solver's
// matrix-free operator, if any, is attached to the stepper and fed by
// the driver's implicit right-hand side.
func NewStepper(d *Driver, s *linsol.BlockSolver, c comm.Communicator, y *chemhydro.State, o Options) (*Stepper, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if d == nil || s == nil {
		return nil, fmt.Errorf("imex: stepper needs a driver and a linear solver")
	}
	if c == nil {
		c = comm.Self{}
	}
	st := &Stepper{
		Driver:  d,
		Solver:  s,
		Comm:    c,
		Options: o,
		Log:     d.Log,
		ycur:    y.Clone(),
		base:    y.Clone(),
		fe:      y.Clone(),
		fi:      y.Clone(),
		b:       y.Clone(),
		x:       y.Clone(),
		w:       y.Clone(),
	}
	if s.Mode() == linsol.Direct {
		st.jac = chemhydro.NewBlockMatrix(y.NumCells(), d.Chem.Pattern())
	}
	s.Attach(st)
	d.Cache = s
	if flag := s.Initialize(); flag != linsol.Success {
		return nil, flag.Err("imex: initializing linear solver")
	}
	return st, nil
}

// CurrentTime returns the time of the implicit stage being solved.
func (s *Stepper) CurrentTime() float64 { return s.t + s.h }

// CurrentState returns the current Newton iterate.
func (s *Stepper) CurrentState() *chemhydro.State { return s.ycur }

// ErrorWeights returns the error weights of the current Newton iterate.
func (s *Stepper) ErrorWeights() *chemhydro.State { return s.w }

// CurrentGamma returns the coefficient of the Jacobian in the Newton
// matrix, which is the step size for backward Euler.
func (s *Stepper) CurrentGamma() float64 { return s.h }

// Evolve advances y from time t to tout and returns the time reached,
// which is tout unless an error occurred.
func (s *Stepper) Evolve(y *chemhydro.State, t, tout float64) (float64, error) {
	eps := 1e-12 * math.Max(1, math.Abs(tout))
	for n := 0; tout-t > eps; n++ {
		if n >= s.MaxSteps {
			return t, chemhydro.Unrecoverable("imex", fmt.Errorf("reached %d steps before time %g", s.MaxSteps, tout))
		}
		h, err := s.step(y, t, math.Min(s.H, tout-t))
		if err != nil {
			return t, err
		}
		t += h
	}
	s.Stats.FDEvals = s.Solver.NumFDEvals()
	return tout, nil
}

// step takes one step of at most h from t and returns the step taken.
func (s *Stepper) step(y *chemhydro.State, t, h float64) (float64, error) {
	for nef := 0; ; nef++ {
		s.Stats.Attempts++
		err := s.attempt(y, t, h)
		if err == nil {
			break
		}
		if chemhydro.StatusOf(err) < 0 {
			return 0, err
		}
		s.Stats.StepFails++
		if nef >= s.MaxNef {
			return 0, chemhydro.Unrecoverable("imex", fmt.Errorf("%d failed attempts at t=%g: %v", nef+1, t, err))
		}
		s.Log.WithFields(logrus.Fields{"t": t, "h": h}).WithError(err).Debug("imex: step failed; halving step")
		h *= 0.5
	}
	if err := s.agree("imex: post-processing", s.Driver.PostprocessStep(t+h, s.ycur)); err != nil {
		return 0, err
	}
	y.CopyFrom(s.ycur)
	y.Buffer(chemhydro.Chemistry).CopyToDevice()
	s.Stats.Steps++
	s.Log.WithFields(logrus.Fields{"t": t + h, "h": h}).Debug("imex: step accepted")
	return h, nil
}

// attempt solves one IMEX Euler stage of size h from (t, y) into ycur.
// Every process reaches each collective operation in the same order and
// returns the same error status.
func (s *Stepper) attempt(y *chemhydro.State, t, h float64) error {
	s.t, s.h = t, h
	d := s.Driver

	s.Stats.FeEvals++
	if err := s.agree("imex: explicit RHS", d.ExplicitRHS(t, y, s.fe)); err != nil {
		return err
	}
	s.base.LinearSum(1, y, h, s.fe)
	s.ycur.CopyFrom(s.base)

	if s.jac != nil {
		s.Stats.JacEvals++
		err := d.ImplicitJacobian(t+h, s.ycur, s.jac)
		if err == nil {
			s.jac.ScaleAddIdentity(-h)
			s.Stats.LinSetups++
			err = s.Solver.Setup(s.jac).Err("imex: linear setup")
		}
		if err = s.agree("imex: Jacobian", err); err != nil {
			return err
		}
	}

	// The fluid part of ycur is final after the explicit stage, so the
	// residual and correction are nonzero only in the chemistry block.
	for m := 0; m < s.MaxNIters; m++ {
		s.Stats.FiEvals++
		if err := s.agree("imex: implicit RHS", d.ImplicitRHS(t+h, s.ycur, s.fi)); err != nil {
			return err
		}
		s.b.LinearSum(1, s.base, -1, s.ycur)
		s.b.AddScaled(h, s.fi)

		wmax := s.weights()
		nchem := float64(len(s.w.Data(chemhydro.Chemistry)))
		tol := 0.05 * s.NLConvCoef * math.Sqrt(nchem) / wmax

		s.x.Zero()
		flag := s.Solver.Solve(s.x, s.b, tol)
		s.Stats.LinIters += s.Solver.NumLinIters()
		switch {
		case flag == linsol.ResReduced:
			s.Stats.LinConvFails++
		case flag != linsol.Success:
			s.Stats.NewtonFails++
			return flag.Err("imex: linear solve")
		}
		s.ycur.AddScaled(1, s.x)
		s.Stats.NewtonIters++

		del, err := s.chemNorm(s.x, s.w)
		if err != nil {
			return chemhydro.Unrecoverable("imex: Newton iteration", err)
		}
		if del <= s.NLConvCoef {
			return nil
		}
	}
	s.Stats.NewtonFails++
	return chemhydro.Recoverable("imex: Newton iteration", fmt.Errorf("no convergence in %d iterations", s.MaxNIters))
}

// weights sets the chemistry error weights from the current iterate and
// returns the largest weight.
func (s *Stepper) weights() float64 {
	y, w := s.ycur.Data(chemhydro.Chemistry), s.w.Data(chemhydro.Chemistry)
	var wmax float64
	for i, v := range y {
		w[i] = 1 / (s.RelTol*math.Abs(v) + s.AbsTol)
		wmax = math.Max(wmax, w[i])
	}
	s.w.Buffer(chemhydro.Chemistry).CopyToDevice()
	return wmax
}

// chemNorm returns the weighted root-mean-square norm of the chemistry
// block of x over all processes.
func (s *Stepper) chemNorm(x, w *chemhydro.State) (float64, error) {
	xd, wd := x.Data(chemhydro.Chemistry), w.Data(chemhydro.Chemistry)
	sum := []float64{0, float64(len(xd))}
	for i, v := range xd {
		p := v * wd[i]
		sum[0] += p * p
	}
	if err := s.Comm.AllreduceSum(sum); err != nil {
		return math.NaN(), err
	}
	return math.Sqrt(sum[0] / sum[1]), nil
}

var errRemote = errors.New("failure on another process")

// agree returns the failure, if any, that every process agrees on given
// the local result err. Unrecoverable failures take precedence.
func (s *Stepper) agree(op string, err error) error {
	local := linsol.Status(chemhydro.StatusOf(err))
	global, cerr := linsol.Consensus(s.Comm, local)
	if cerr != nil {
		return chemhydro.Unrecoverable(op, cerr)
	}
	if global == linsol.Success {
		return nil
	}
	if global == local {
		return err
	}
	return &chemhydro.StatusError{Op: op, Code: int(global), Err: errRemote}
}
