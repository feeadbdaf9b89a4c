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

import "fmt"

// Grid describes the global rectangular domain.
type Grid struct {
	NX, NY, NZ int
	XL, XR     float64
	YL, YR     float64
	ZL, ZR     float64
}

// Dx returns the cell width in the x direction.
func (g Grid) Dx() float64 { return (g.XR - g.XL) / float64(g.NX) }

// Dy returns the cell width in the y direction.
func (g Grid) Dy() float64 { return (g.YR - g.YL) / float64(g.NY) }

// Dz returns the cell width in the z direction.
func (g Grid) Dz() float64 { return (g.ZR - g.ZL) / float64(g.NZ) }

// CellVolume returns the volume of one grid cell.
func (g Grid) CellVolume() float64 { return g.Dx() * g.Dy() * g.Dz() }

// Validate checks that g describes a usable domain.
func (g Grid) Validate() error {
	if g.NX <= 0 || g.NY <= 0 || g.NZ <= 0 {
		return fmt.Errorf("chemhydro: grid dimensions (%d, %d, %d) must all be >0", g.NX, g.NY, g.NZ)
	}
	if !(g.XR > g.XL) || !(g.YR > g.YL) || !(g.ZR > g.ZL) {
		return fmt.Errorf("chemhydro: grid bounds [%g,%g]x[%g,%g]x[%g,%g] are empty",
			g.XL, g.XR, g.YL, g.YR, g.ZL, g.ZR)
	}
	return nil
}

// Extents is the portion of the global Grid owned by one process.
type Extents struct {
	Grid

	// Local cell counts.
	LNX, LNY, LNZ int

	// Global index of the first local cell in each direction.
	IS, JS, KS int

	// Process grid and the coordinates of this process in it.
	NPX, NPY, NPZ int
	PX, PY, PZ    int
}

// NumCells returns the number of local cells.
func (e Extents) NumCells() int { return e.LNX * e.LNY * e.LNZ }

// Cell returns the flat index of local cell (i, j, k), with i varying
// fastest.
func (e Extents) Cell(i, j, k int) int { return i + e.LNX*(j+e.LNY*k) }

// Center returns the coordinates of the center of local cell (i, j, k).
func (e Extents) Center(i, j, k int) (x, y, z float64) {
	x = e.XL + (float64(e.IS+i)+0.5)*e.Dx()
	y = e.YL + (float64(e.JS+j)+0.5)*e.Dy()
	z = e.ZL + (float64(e.KS+k)+0.5)*e.Dz()
	return
}

// DimsCreate fills the zero entries of dims so that the product of all
// entries equals size, keeping the filled entries as balanced as possible.
func DimsCreate(size int, dims [3]int) ([3]int, error) {
	if size < 1 {
		return dims, fmt.Errorf("chemhydro: process group size %d must be >0", size)
	}
	fixed := 1
	var free []int
	for i, d := range dims {
		switch {
		case d < 0:
			return dims, fmt.Errorf("chemhydro: process grid entry %d is negative (%d)", i, d)
		case d == 0:
			free = append(free, i)
			dims[i] = 1
		default:
			fixed *= d
		}
	}
	if size%fixed != 0 {
		return dims, fmt.Errorf("chemhydro: process grid %v does not divide %d processes", dims, size)
	}
	rest := size / fixed
	if len(free) == 0 {
		if rest != 1 {
			return dims, fmt.Errorf("chemhydro: process grid %v has %d processes but the group has %d", dims, fixed, size)
		}
		return dims, nil
	}
	// Hand out prime factors, largest first, to the smallest free entry.
	var primes []int
	for p := 2; p*p <= rest; p++ {
		for rest%p == 0 {
			primes = append(primes, p)
			rest /= p
		}
	}
	if rest > 1 {
		primes = append(primes, rest)
	}
	for i := len(primes) - 1; i >= 0; i-- {
		smallest := free[0]
		for _, f := range free[1:] {
			if dims[f] < dims[smallest] {
				smallest = f
			}
		}
		dims[smallest] *= primes[i]
	}
	return dims, nil
}

// Decompose splits g over a process grid of the given shape and returns
// the extents owned by rank. Zero entries in procs are chosen
// automatically. Ranks are laid out with x varying fastest.
func Decompose(g Grid, procs [3]int, rank, size int) (Extents, error) {
	if err := g.Validate(); err != nil {
		return Extents{}, err
	}
	if rank < 0 || rank >= size {
		return Extents{}, fmt.Errorf("chemhydro: rank %d is outside process group of size %d", rank, size)
	}
	dims, err := DimsCreate(size, procs)
	if err != nil {
		return Extents{}, err
	}
	n := [3]int{g.NX, g.NY, g.NZ}
	for d := 0; d < 3; d++ {
		if dims[d] > n[d] {
			return Extents{}, fmt.Errorf("chemhydro: %d processes along axis %d but only %d cells", dims[d], d, n[d])
		}
	}
	e := Extents{Grid: g, NPX: dims[0], NPY: dims[1], NPZ: dims[2]}
	e.PX = rank % dims[0]
	e.PY = (rank / dims[0]) % dims[1]
	e.PZ = rank / (dims[0] * dims[1])
	e.IS, e.LNX = split(g.NX, dims[0], e.PX)
	e.JS, e.LNY = split(g.NY, dims[1], e.PY)
	e.KS, e.LNZ = split(g.NZ, dims[2], e.PZ)
	return e, nil
}

// split returns the offset and length of part p of n items divided into
// np parts, with the remainder going to the first parts.
func split(n, np, p int) (start, length int) {
	base, rem := n/np, n%np
	length = base
	if p < rem {
		length++
	}
	start = p*base + min(p, rem)
	return start, length
}
