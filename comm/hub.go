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

package comm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAborted is returned by collectives on a group that has been aborted.
var ErrAborted = errors.New("comm: process group aborted")

// hub matches up the contributions of all members of a group to one
// collective operation at a time. The last member to arrive computes the
// result and releases the others.
type hub struct {
	mu   sync.Mutex
	cond *sync.Cond
	size int

	gen     int
	arrived int
	ops     []string
	roots   []int
	ints    [][]int
	floats  [][]float64
	resInts []int
	resFlt  []float64
	resErr  error
	err     error
}

func newHub(size int) *hub {
	h := &hub{
		size:   size,
		ops:    make([]string, size),
		roots:  make([]int, size),
		ints:   make([][]int, size),
		floats: make([][]float64, size),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// do contributes the data of rank to the current collective and blocks
// until the result is available.
func (h *hub) do(rank int, op string, root int, ints []int, floats []float64) ([]int, []float64, error) {
	if rank < 0 || rank >= h.size {
		return nil, nil, fmt.Errorf("comm: rank %d outside group of size %d", rank, h.size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, nil, h.err
	}
	gen := h.gen
	h.ops[rank], h.roots[rank] = op, root
	h.ints[rank] = append(h.ints[rank][:0], ints...)
	h.floats[rank] = append(h.floats[rank][:0], floats...)
	h.arrived++
	if h.arrived == h.size {
		h.finish()
		h.arrived = 0
		h.gen++
		h.cond.Broadcast()
	} else {
		for h.gen == gen && h.err == nil {
			h.cond.Wait()
		}
		if h.gen == gen {
			return nil, nil, h.err
		}
	}
	if h.resErr != nil {
		return nil, nil, h.resErr
	}
	return append([]int(nil), h.resInts...), append([]float64(nil), h.resFlt...), nil
}

// finish computes the result of the current collective. It runs with
// every rank's contribution in place, so a rank that called a different
// collective is reported to all of them.
func (h *hub) finish() {
	h.resInts, h.resFlt, h.resErr = nil, nil, nil
	op, root := h.ops[0], h.roots[0]
	for r := 0; r < h.size; r++ {
		if h.ops[r] != op {
			h.resErr = fmt.Errorf("comm: rank %d called %s during %s", r, h.ops[r], op)
			return
		}
		if len(h.ints[r]) != len(h.ints[0]) || len(h.floats[r]) != len(h.floats[0]) {
			h.resErr = fmt.Errorf("comm: %s called with mismatched lengths", op)
			return
		}
		if op == opBcast && h.roots[r] != root {
			h.resErr = fmt.Errorf("comm: rank %d used broadcast root %d, rank 0 used %d", r, h.roots[r], root)
			return
		}
	}
	switch op {
	case opMin:
		h.resInts = append([]int(nil), h.ints[0]...)
		for r := 1; r < h.size; r++ {
			for i, v := range h.ints[r] {
				if v < h.resInts[i] {
					h.resInts[i] = v
				}
			}
		}
	case opSum:
		h.resFlt = make([]float64, len(h.floats[0]))
		for r := 0; r < h.size; r++ {
			for i, v := range h.floats[r] {
				h.resFlt[i] += v
			}
		}
	case opBcast:
		if root < 0 || root >= h.size {
			h.resErr = fmt.Errorf("comm: invalid broadcast root %d for group of size %d", root, h.size)
			return
		}
		h.resFlt = append([]float64(nil), h.floats[root]...)
	case opBarrier:
	default:
		h.resErr = fmt.Errorf("comm: unknown collective %q", op)
	}
}

// abort releases every waiting member with err and makes all later
// collectives fail.
func (h *hub) abort(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.cond.Broadcast()
	h.mu.Unlock()
}
