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
	"strings"

	"github.com/ctessum/sparse"
)

// MemoryKind selects how a Buffer relates its host and device views.
type MemoryKind int

const (
	// Unified buffers expose one allocation through both views.
	Unified MemoryKind = iota
	// Mirrored buffers keep a separate device copy that is only brought up
	// to date by explicit copies.
	Mirrored
)

func (k MemoryKind) String() string {
	if k == Mirrored {
		return "mirrored"
	}
	return "unified"
}

// ParseMemoryKind converts "unified" or "mirrored" into a MemoryKind.
func ParseMemoryKind(s string) (MemoryKind, error) {
	switch strings.ToLower(s) {
	case "unified", "":
		return Unified, nil
	case "mirrored":
		return Mirrored, nil
	default:
		return Unified, fmt.Errorf("chemhydro: invalid memory kind %q; valid options are 'unified' and 'mirrored'", s)
	}
}

// Buffer is a contiguous array of doubles with a host view and a device
// view. Kernels read and write the device view; the host view is what
// vector operations and I/O see.
type Buffer struct {
	kind   MemoryKind
	host   *sparse.DenseArray
	device []float64
}

// NewBuffer allocates a zeroed buffer with the given array shape.
func NewBuffer(kind MemoryKind, shape ...int) *Buffer {
	b := &Buffer{kind: kind, host: sparse.ZerosDense(shape...)}
	if kind == Mirrored {
		b.device = make([]float64, len(b.host.Elements))
	} else {
		b.device = b.host.Elements
	}
	return b
}

// Kind returns the memory kind of b.
func (b *Buffer) Kind() MemoryKind { return b.kind }

// Host returns the host view as an n-dimensional array.
func (b *Buffer) Host() *sparse.DenseArray { return b.host }

// HostData returns the flat host view.
func (b *Buffer) HostData() []float64 { return b.host.Elements }

// Device returns the flat device view.
func (b *Buffer) Device() []float64 { return b.device }

// Len returns the number of elements in b.
func (b *Buffer) Len() int { return len(b.host.Elements) }

// CopyToDevice brings the device view up to date with the host view.
func (b *Buffer) CopyToDevice() {
	if b.kind == Mirrored {
		copy(b.device, b.host.Elements)
	}
}

// CopyFromDevice brings the host view up to date with the device view.
func (b *Buffer) CopyFromDevice() {
	if b.kind == Mirrored {
		copy(b.host.Elements, b.device)
	}
}

func (b *Buffer) clone() *Buffer {
	o := &Buffer{kind: b.kind, host: b.host.Copy()}
	if b.kind == Mirrored {
		o.device = make([]float64, len(b.device))
		copy(o.device, b.device)
	} else {
		o.device = o.host.Elements
	}
	return o
}
