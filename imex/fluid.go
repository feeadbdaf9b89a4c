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
	"math"

	"github.com/Knetic/govaluate"

	"github.com/spatialmodel/chemhydro"
)

// Quiescent is a fluid at rest: every fluid time derivative is zero.
type Quiescent struct{}

// FluidRHS leaves ydot unchanged.
func (Quiescent) FluidRHS(float64, *chemhydro.State, *chemhydro.State) error { return nil }

// ExpressionForcing adds an external energy source to a base fluid model.
// The source is an expression in the cell center coordinates x, y and z
// and the time t, all in code units, and gives the rate of change of the
// total energy density in code units.
type ExpressionForcing struct {
	Base FluidRHS

	source *govaluate.EvaluableExpression
	text   string
}

var forcingFunctions = map[string]govaluate.ExpressionFunction{
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("imex: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
	"sqrt": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("imex: got %d arguments for function 'sqrt', but needs 1", len(arg))
		}
		return math.Sqrt(arg[0].(float64)), nil
	},
	"sin": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("imex: got %d arguments for function 'sin', but needs 1", len(arg))
		}
		return math.Sin(arg[0].(float64)), nil
	},
}

// NewExpressionForcing parses the source expression. A nil base is a
// Quiescent fluid.
func NewExpressionForcing(base FluidRHS, expression string) (*ExpressionForcing, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expression, forcingFunctions)
	if err != nil {
		return nil, fmt.Errorf("imex: energy source: %v", err)
	}
	for _, v := range e.Vars() {
		switch v {
		case "x", "y", "z", "t":
		default:
			return nil, fmt.Errorf("imex: energy source uses unknown variable %q; valid variables are x, y, z and t", v)
		}
	}
	if base == nil {
		base = Quiescent{}
	}
	return &ExpressionForcing{Base: base, source: e, text: expression}, nil
}

func (f *ExpressionForcing) String() string { return f.text }

// FluidRHS evaluates the base model and adds the energy source.
func (f *ExpressionForcing) FluidRHS(t float64, y, ydot *chemhydro.State) error {
	if err := f.Base.FluidRHS(t, y, ydot); err != nil {
		return err
	}
	ext := y.Ext
	etdot := ydot.Data(chemhydro.TotalEnergy)
	params := make(map[string]interface{}, 4)
	params["t"] = t
	for k := 0; k < ext.LNZ; k++ {
		for j := 0; j < ext.LNY; j++ {
			for i := 0; i < ext.LNX; i++ {
				params["x"], params["y"], params["z"] = ext.Center(i, j, k)
				v, err := f.source.Evaluate(params)
				if err != nil {
					return chemhydro.Unrecoverable("imex: energy source", err)
				}
				s, ok := v.(float64)
				if !ok {
					return chemhydro.Unrecoverable("imex: energy source", fmt.Errorf("expression %q gives %T, not a number", f.text, v))
				}
				etdot[ext.Cell(i, j, k)] += s
			}
		}
	}
	return nil
}
