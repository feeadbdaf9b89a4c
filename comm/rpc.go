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
	"net"
	"net/http"
	"net/rpc"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Empty is used for passing content-less messages.
type Empty struct{}

// Contribution is the data one process supplies to a collective.
// It is exported to meet RPC requirements.
type Contribution struct {
	Rank   int
	Op     string
	Root   int
	Ints   []int
	Floats []float64
}

// Result is the outcome of a collective.
// It is exported to meet RPC requirements.
type Result struct {
	Ints   []int
	Floats []float64
}

// Hub is the RPC service hosted by rank 0 of an RPCGroup. It should not
// be interacted with directly, but it is exported to meet RPC
// requirements.
type Hub struct {
	h *hub
}

// Collective blocks until every process has contributed to the current
// collective operation and then returns its result.
func (s *Hub) Collective(in *Contribution, out *Result) error {
	ints, floats, err := s.h.do(in.Rank, in.Op, in.Root, in.Ints, in.Floats)
	if err != nil {
		return err
	}
	out.Ints, out.Floats = ints, floats
	return nil
}

// RPCGroup is a member of a process group whose members are separate OS
// processes. Rank 0 hosts the Hub and the other members connect to it
// over HTTP-based RPC.
type RPCGroup struct {
	rank, size int

	hub      *hub
	listener net.Listener
	client   *rpc.Client

	// Log receives connection messages.
	Log logrus.FieldLogger
}

// DialTimeout is how long non-root members keep retrying to reach the
// hub before giving up.
var DialTimeout = time.Minute

// NewRPCGroup joins the process group of the given size whose hub
// listens at addr ("host:port"). Rank 0 starts the hub.
func NewRPCGroup(rank, size int, addr string) (*RPCGroup, error) {
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("comm: invalid rank %d for group of size %d", rank, size)
	}
	g := &RPCGroup{rank: rank, size: size, Log: logrus.StandardLogger()}
	if rank == 0 {
		g.hub = newHub(size)
		srv := rpc.NewServer()
		if err := srv.Register(&Hub{h: g.hub}); err != nil {
			return nil, err
		}
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("comm: starting hub: %v", err)
		}
		g.listener = l
		go http.Serve(l, srv)
		g.Log.WithField("addr", l.Addr().String()).Info("started process group hub")
		return g, nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = DialTimeout
	err := backoff.Retry(func() error {
		c, err := rpc.DialHTTP("tcp", addr)
		if err != nil {
			return err
		}
		g.client = c
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("comm: rank %d dialing hub at %s: %v", rank, addr, err)
	}
	g.Log.WithFields(logrus.Fields{"addr": addr, "rank": rank}).Info("joined process group")
	return g, nil
}

// Addr returns the address the hub listens on, or nil for non-root
// members.
func (g *RPCGroup) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

func (g *RPCGroup) collective(op string, root int, ints []int, floats []float64) (*Result, error) {
	if g.hub != nil {
		i, f, err := g.hub.do(g.rank, op, root, ints, floats)
		if err != nil {
			return nil, err
		}
		return &Result{Ints: i, Floats: f}, nil
	}
	out := new(Result)
	in := &Contribution{Rank: g.rank, Op: op, Root: root, Ints: ints, Floats: floats}
	if err := g.client.Call("Hub.Collective", in, out); err != nil {
		return nil, fmt.Errorf("comm: %s: %v", op, err)
	}
	return out, nil
}

func (g *RPCGroup) Rank() int { return g.rank }
func (g *RPCGroup) Size() int { return g.size }

func (g *RPCGroup) AllreduceMin(x []int) error {
	r, err := g.collective(opMin, 0, x, nil)
	if err != nil {
		return err
	}
	copy(x, r.Ints)
	return nil
}

func (g *RPCGroup) AllreduceSum(x []float64) error {
	r, err := g.collective(opSum, 0, nil, x)
	if err != nil {
		return err
	}
	copy(x, r.Floats)
	return nil
}

func (g *RPCGroup) Bcast(root int, x []float64) error {
	r, err := g.collective(opBcast, root, nil, x)
	if err != nil {
		return err
	}
	copy(x, r.Floats)
	return nil
}

func (g *RPCGroup) Barrier() error {
	_, err := g.collective(opBarrier, 0, nil, nil)
	return err
}

// Close waits for every member to reach Close and then releases the
// connection or the listener.
func (g *RPCGroup) Close() error {
	err := g.Barrier()
	if g.client != nil {
		if cerr := g.client.Close(); err == nil {
			err = cerr
		}
	}
	if g.listener != nil {
		// Give the other members time to receive the barrier reply.
		time.Sleep(100 * time.Millisecond)
		if cerr := g.listener.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
