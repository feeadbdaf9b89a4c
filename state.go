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
	"math"

	"gonum.org/v1/gonum/floats"
)

// Reducer performs global sums over all processes. Any communicator
// from package comm satisfies it.
type Reducer interface {
	AllreduceSum(x []float64) error
}

// State is the partitioned simulation state owned by one process:
// five fluid fields with one value per cell and a chemistry field with
// NumSpecies values per cell. Fluid fields have shape (nz, ny, nx) and the
// chemistry field has shape (nz, ny, nx, nspecies), so species vary
// fastest within the chemistry field.
type State struct {
	Ext        Extents
	NumSpecies int

	fields [NumFields]*Buffer
}

// NewState allocates a zeroed state over ext.
func NewState(ext Extents, nspecies int, kind MemoryKind) *State {
	s := &State{Ext: ext, NumSpecies: nspecies}
	for f := Density; f < Chemistry; f++ {
		s.fields[f] = NewBuffer(kind, ext.LNZ, ext.LNY, ext.LNX)
	}
	s.fields[Chemistry] = NewBuffer(kind, ext.LNZ, ext.LNY, ext.LNX, nspecies)
	return s
}

// Buffer returns the storage of field f.
func (s *State) Buffer(f Field) *Buffer { return s.fields[f] }

// Data returns the flat host view of field f.
func (s *State) Data(f Field) []float64 { return s.fields[f].HostData() }

// NumCells returns the number of local cells.
func (s *State) NumCells() int { return s.Ext.NumCells() }

// Len returns the total number of local values.
func (s *State) Len() int {
	var n int
	for _, b := range s.fields {
		n += b.Len()
	}
	return n
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	o := &State{Ext: s.Ext, NumSpecies: s.NumSpecies}
	for i, b := range s.fields {
		o.fields[i] = b.clone()
	}
	return o
}

// CopyFrom copies the host values of o into s.
func (s *State) CopyFrom(o *State) {
	for i := range s.fields {
		copy(s.Data(Field(i)), o.Data(Field(i)))
	}
}

// Zero sets every host value of s to zero.
func (s *State) Zero() { s.Fill(0) }

// Fill sets every host value of s to c.
func (s *State) Fill(c float64) {
	for i := range s.fields {
		d := s.Data(Field(i))
		for j := range d {
			d[j] = c
		}
	}
}

// Scale multiplies every host value of s by c.
func (s *State) Scale(c float64) {
	for i := range s.fields {
		floats.Scale(c, s.Data(Field(i)))
	}
}

// LinearSum sets s = a*x + b*y. Any of s, x and y may be the same state.
func (s *State) LinearSum(a float64, x *State, b float64, y *State) {
	for i := range s.fields {
		d, xd, yd := s.Data(Field(i)), x.Data(Field(i)), y.Data(Field(i))
		for j := range d {
			d[j] = a*xd[j] + b*yd[j]
		}
	}
}

// AddScaled sets s = s + a*x.
func (s *State) AddScaled(a float64, x *State) {
	for i := range s.fields {
		floats.AddScaled(s.Data(Field(i)), a, x.Data(Field(i)))
	}
}

// Finite reports whether every host value of s is finite.
func (s *State) Finite() bool {
	for i := range s.fields {
		for _, v := range s.Data(Field(i)) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// WrmsNorm returns the weighted root-mean-square norm of s with weights w
// over all processes.
func (s *State) WrmsNorm(r Reducer, w *State) (float64, error) {
	sum := []float64{0, 0}
	for i := range s.fields {
		d, wd := s.Data(Field(i)), w.Data(Field(i))
		for j, v := range d {
			p := v * wd[j]
			sum[0] += p * p
		}
		sum[1] += float64(len(d))
	}
	if r != nil {
		if err := r.AllreduceSum(sum); err != nil {
			return math.NaN(), fmt.Errorf("chemhydro: computing norm: %v", err)
		}
	}
	return math.Sqrt(sum[0] / sum[1]), nil
}
