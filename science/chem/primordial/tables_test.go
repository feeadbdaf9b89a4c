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

package primordial

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/chemhydro/comm"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func testTables(t *testing.T) *Tables {
	tab, err := SyntheticTables(DefaultBounds)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestInterpolationAtNodes(t *testing.T) {
	tab := testTables(t)
	temps := tab.Temperatures()
	for _, i := range []int{0, 1, 100, 511, 712, 1000, TableLength - 1} {
		var w coefficients
		tab.interpolate(temps[i], &w)
		for r := range tab.Rates {
			if different(w.k[r], tab.Rates[r][i], 1e-12) {
				t.Errorf("%s node %d: have %g, want %g", RateNames[r], i, w.k[r], tab.Rates[r][i])
			}
		}
		for c := range tab.Cooling {
			if different(w.c[c], tab.Cooling[c][i], 1e-12) {
				t.Errorf("%s node %d: have %g, want %g", CoolingNames[c], i, w.c[c], tab.Cooling[c][i])
			}
		}
	}
}

func TestInterpolationSlope(t *testing.T) {
	tab := testTables(t)
	temps := tab.Temperatures()
	T := math.Sqrt(temps[712] * temps[713])
	v, dv, err := tab.Value("k02", T)
	if err != nil {
		t.Fatal(err)
	}
	r := tab.Rates[k02]
	want := 0.5 * (r[712] + r[713])
	if different(v, want, 1e-10) {
		t.Errorf("midpoint value: have %g, want %g", v, want)
	}
	const h = 1e-4
	vp, _, _ := tab.Value("k02", T*(1+h))
	vm, _, _ := tab.Value("k02", T*(1-h))
	fd := (vp - vm) / (2 * h * T)
	if different(dv, fd, 1e-6) {
		t.Errorf("slope: have %g, want %g", dv, fd)
	}
	if _, _, err := tab.Value("xxx", T); err == nil {
		t.Error("should be an error for an unknown coefficient")
	}
}

func TestInterpolationClamp(t *testing.T) {
	tab := testTables(t)
	bin, _, _ := tab.locate(1e9)
	if bin != nbins-1 {
		t.Errorf("bin above table: have %d, want %d", bin, nbins-1)
	}
	bin, _, _ = tab.locate(1e-3)
	if bin != 0 {
		t.Errorf("bin below table: have %d, want 0", bin)
	}
}

func TestTableReadWrite(t *testing.T) {
	tab := testTables(t)
	path := filepath.Join(t.TempDir(), "tables.ncf")
	if err := WriteTableFile(path, tab); err != nil {
		t.Fatal(err)
	}
	tab2, err := ReadTableFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := tab2.Fingerprint(), tab.Fingerprint(); have != want {
		t.Errorf("fingerprint: have %s, want %s", have, want)
	}
	if tab2.Bounds != DefaultBounds {
		t.Errorf("bounds: have %v, want %v", tab2.Bounds, DefaultBounds)
	}
}

func TestTableMissingDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.ncf")
	h := cdf.NewHeader([]string{"bound"}, []int{2})
	h.AddVariable("bounds", []string{"bound"}, []float64{0})
	h.Define()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cf.Writer("bounds", []int{0}, []int{2}).Write([]float64{1, 1e5}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = ReadTableFile(path)
	if err == nil {
		t.Fatal("should be an error")
	}
	if !strings.Contains(err.Error(), "missing dataset k01") {
		t.Errorf("unexpected error %v", err)
	}
	if _, err := ReadTableFile(filepath.Join(t.TempDir(), "none.ncf")); err == nil {
		t.Error("should be an error for a missing file")
	}
}

func TestTableBadLength(t *testing.T) {
	tab := testTables(t)
	tab.Cooling[brem] = tab.Cooling[brem][:10]
	if err := tab.init(); err == nil {
		t.Error("should be an error")
	}
}

func TestLoadTables(t *testing.T) {
	tab := testTables(t)
	path := filepath.Join(t.TempDir(), "tables.ncf")
	if err := WriteTableFile(path, tab); err != nil {
		t.Fatal(err)
	}
	want := tab.Fingerprint()
	for _, size := range []int{1, 3} {
		err := comm.Run(size, func(c comm.Communicator) error {
			tab, err := LoadTables(c, path, nil)
			if err != nil {
				return err
			}
			if have := tab.Fingerprint(); have != want {
				t.Errorf("size %d rank %d: have %s, want %s", size, c.Rank(), have, want)
			}
			return nil
		})
		if err != nil {
			t.Errorf("size %d: %v", size, err)
		}
	}
}

func TestLoadTablesFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.ncf")
	var failed [3]bool
	comm.Run(3, func(c comm.Communicator) error {
		_, err := LoadTables(c, path, nil)
		failed[c.Rank()] = err != nil
		return nil
	})
	for r, f := range failed {
		if !f {
			t.Errorf("rank %d should have failed", r)
		}
	}
}
