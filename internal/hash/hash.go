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

// Package hash computes content fingerprints used to identify input data
// in log output and run summaries.
package hash

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hash key for the specified object.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()

	if err := gob.NewEncoder(h).Encode(object); err == nil {
		return fmt.Sprintf("%x", h.Sum(nil))
	}
	// Objects that gob cannot encode (e.g., structs without exported
	// fields) are dumped with spew instead.
	h.Reset()
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Floats returns a hash key for a sequence of float arrays. Arrays with
// the same values in the same order always hash identically, including
// arrays that contain NaN.
func Floats(data ...[]float64) string {
	h := fnv.New128a()
	var b [8]byte
	for _, d := range data {
		binary.LittleEndian.PutUint64(b[:], uint64(len(d)))
		h.Write(b[:])
		for _, v := range d {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			h.Write(b[:])
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
