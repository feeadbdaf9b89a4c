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
	"fmt"
	"sync"
)

// LocalGroup is a member of a process group whose members are goroutines
// in the same OS process.
type LocalGroup struct {
	hub  *hub
	rank int
}

// NewLocalGroup returns the members of a new group of the given size.
func NewLocalGroup(size int) ([]*LocalGroup, error) {
	if size < 1 {
		return nil, fmt.Errorf("comm: group size %d must be >0", size)
	}
	h := newHub(size)
	g := make([]*LocalGroup, size)
	for i := range g {
		g[i] = &LocalGroup{hub: h, rank: i}
	}
	return g, nil
}

func (g *LocalGroup) Rank() int { return g.rank }
func (g *LocalGroup) Size() int { return g.hub.size }

func (g *LocalGroup) AllreduceMin(x []int) error {
	r, _, err := g.hub.do(g.rank, opMin, 0, x, nil)
	if err != nil {
		return err
	}
	copy(x, r)
	return nil
}

func (g *LocalGroup) AllreduceSum(x []float64) error {
	_, r, err := g.hub.do(g.rank, opSum, 0, nil, x)
	if err != nil {
		return err
	}
	copy(x, r)
	return nil
}

func (g *LocalGroup) Bcast(root int, x []float64) error {
	_, r, err := g.hub.do(g.rank, opBcast, root, nil, x)
	if err != nil {
		return err
	}
	copy(x, r)
	return nil
}

func (g *LocalGroup) Barrier() error {
	_, _, err := g.hub.do(g.rank, opBarrier, 0, nil, nil)
	return err
}

// Abort makes every pending and future collective in the group fail with
// err.
func (g *LocalGroup) Abort(err error) { g.hub.abort(err) }

// Run executes f once for each member of a new local group of the given
// size, concurrently. If any member fails, the group is aborted so the
// others do not block, and the error of the first member to fail is
// returned.
func Run(size int, f func(c Communicator) error) error {
	group, err := NewLocalGroup(size)
	if err != nil {
		return err
	}
	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	wg.Add(size)
	for _, g := range group {
		go func(g *LocalGroup) {
			defer wg.Done()
			if err := f(g); err != nil {
				once.Do(func() { first = err })
				g.Abort(fmt.Errorf("%w: rank %d failed: %v", ErrAborted, g.rank, err))
			}
		}(g)
	}
	wg.Wait()
	return first
}
