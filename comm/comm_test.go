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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs a fixed sequence of collectives and checks the results.
func exercise(c Communicator) error {
	r, n := c.Rank(), c.Size()
	ints := []int{r, -r, 7}
	if err := c.AllreduceMin(ints); err != nil {
		return err
	}
	if ints[0] != 0 || ints[1] != -(n-1) || ints[2] != 7 {
		return fmt.Errorf("rank %d: min gave %v", r, ints)
	}
	sums := []float64{1, float64(r)}
	if err := c.AllreduceSum(sums); err != nil {
		return err
	}
	if sums[0] != float64(n) || sums[1] != float64(n*(n-1)/2) {
		return fmt.Errorf("rank %d: sum gave %v", r, sums)
	}
	root := n - 1
	data := []float64{float64(r), float64(r * 10)}
	if err := c.Bcast(root, data); err != nil {
		return err
	}
	if data[0] != float64(root) || data[1] != float64(root*10) {
		return fmt.Errorf("rank %d: bcast gave %v", r, data)
	}
	return c.Barrier()
}

func TestSelf(t *testing.T) {
	require.NoError(t, exercise(Self{}))
	assert.Error(t, Self{}.Bcast(1, nil))
}

func TestLocalGroup(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 7} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			err := Run(n, func(c Communicator) error {
				for i := 0; i < 20; i++ {
					if err := exercise(c); err != nil {
						return err
					}
				}
				return nil
			})
			assert.NoError(t, err)
		})
	}
}

func TestLocalGroupAbort(t *testing.T) {
	failure := errors.New("table file missing")
	err := Run(3, func(c Communicator) error {
		if c.Rank() == 1 {
			return failure
		}
		return c.Barrier()
	})
	assert.Equal(t, failure, err)
}

// A rank that finishes one collective may start the next before the
// others have woken up from the first.
func TestLocalGroupBackToBack(t *testing.T) {
	for trial := 0; trial < 50; trial++ {
		err := Run(4, func(c Communicator) error {
			for i := 0; i < 10; i++ {
				st := []int{c.Rank(), -c.Rank()}
				if err := c.AllreduceMin(st); err != nil {
					return err
				}
				if st[0] != 0 || st[1] != -3 {
					return fmt.Errorf("rank %d: min gave %v", c.Rank(), st)
				}
				x := []float64{float64(c.Rank())}
				if err := c.Bcast(2, x); err != nil {
					return err
				}
				if x[0] != 2 {
					return fmt.Errorf("rank %d: bcast gave %v", c.Rank(), x)
				}
			}
			return nil
		})
		require.NoError(t, err, "trial %d", trial)
	}
}

func TestLocalGroupWrongCollective(t *testing.T) {
	groups, err := NewLocalGroup(2)
	require.NoError(t, err)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = groups[0].AllreduceMin([]int{1})
	}()
	go func() {
		defer wg.Done()
		errs[1] = groups[1].AllreduceSum([]float64{1})
	}()
	wg.Wait()
	for r, err := range errs {
		assert.Error(t, err, "rank %d", r)
	}
}

func TestLocalGroupMismatch(t *testing.T) {
	err := Run(2, func(c Communicator) error {
		x := make([]float64, c.Rank()+1)
		return c.AllreduceSum(x)
	})
	assert.Error(t, err)
	_, err = NewLocalGroup(0)
	assert.Error(t, err)
}

func TestRPCGroup(t *testing.T) {
	const n = 3
	root, err := NewRPCGroup(0, n, "127.0.0.1:0")
	require.NoError(t, err)
	addr := root.Addr().String()

	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for r := 0; r < n; r++ {
		go func(r int) {
			defer wg.Done()
			g := root
			if r != 0 {
				var err error
				if g, err = NewRPCGroup(r, n, addr); err != nil {
					errs[r] = err
					return
				}
			}
			for i := 0; i < 5; i++ {
				if err := exercise(g); err != nil {
					errs[r] = err
					return
				}
			}
			errs[r] = g.Close()
		}(r)
	}
	wg.Wait()
	for r, err := range errs {
		assert.NoError(t, err, "rank %d", r)
	}
}

func TestRPCGroupInvalid(t *testing.T) {
	_, err := NewRPCGroup(2, 2, "127.0.0.1:0")
	assert.Error(t, err)
}
