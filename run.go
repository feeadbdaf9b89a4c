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
	"runtime"
	"sync"
)

// CellKernel is a function that operates on a single grid cell,
// identified by its flat local index.
type CellKernel func(cell int)

// ParallelFor runs all of the kernels on each of n cells. Cells are
// distributed in a strided pattern over one goroutine per processor, and
// each cell is visited by exactly one goroutine, so kernels may write any
// per-cell data without locking.
func ParallelFor(n int, kernels ...CellKernel) {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > n {
		nprocs = n
	}
	if nprocs <= 1 {
		for c := 0; c < n; c++ {
			for _, f := range kernels {
				f(c)
			}
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for c := pp; c < n; c += nprocs {
				for _, f := range kernels {
					f(c)
				}
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// ParallelReduce runs f on each of n cells in parallel and returns the sum
// of its results.
func ParallelReduce(n int, f func(cell int) float64) float64 {
	nprocs := runtime.GOMAXPROCS(0)
	partial := make([]float64, nprocs)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for c := pp; c < n; c += nprocs {
				partial[pp] += f(c)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
	var s float64
	for _, v := range partial {
		s += v
	}
	return s
}
