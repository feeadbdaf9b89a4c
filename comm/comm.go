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

// Package comm provides the collective operations that processes use to
// agree on solver outcomes and to share data read by a single process.
package comm

import "fmt"

// Communicator is a process group. All collective operations must be
// called by every member of the group in the same order.
type Communicator interface {
	// Rank returns the index of this process in the group.
	Rank() int
	// Size returns the number of processes in the group.
	Size() int
	// AllreduceMin replaces each element of x with its minimum over the group.
	AllreduceMin(x []int) error
	// AllreduceSum replaces each element of x with its sum over the group.
	AllreduceSum(x []float64) error
	// Bcast replaces x on every process with its value on process root.
	Bcast(root int, x []float64) error
	// Barrier blocks until every process has called it.
	Barrier() error
}

// Self is a group containing only the calling process.
type Self struct{}

func (Self) Rank() int { return 0 }
func (Self) Size() int { return 1 }
func (Self) AllreduceMin([]int) error { return nil }
func (Self) AllreduceSum([]float64) error { return nil }
func (Self) Barrier() error { return nil }
func (Self) Bcast(root int, _ []float64) error {
	if root != 0 {
		return fmt.Errorf("comm: invalid broadcast root %d for group of size 1", root)
	}
	return nil
}

// Collective operation names.
const (
	opMin     = "min"
	opSum     = "sum"
	opBcast   = "bcast"
	opBarrier = "barrier"
)
