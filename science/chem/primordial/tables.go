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
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/chemhydro/comm"
	"github.com/spatialmodel/chemhydro/internal/hash"
)

// TableLength is the number of tabulated temperatures. The tables span
// TableLength-1 intervals that are uniform in ln(T).
const TableLength = 1024

const nbins = TableLength - 1

// DefaultBounds is the default tabulated temperature range [K].
var DefaultBounds = [2]float64{1, 1e5}

// Tables holds the tabulated reaction rates, cooling coefficients and
// molecular adiabatic indices on a log-uniform temperature grid.
// Tables are read-only once loaded and may be shared by any number of
// concurrent readers.
type Tables struct {
	Bounds  [2]float64
	Rates   [numRates][]float64
	Cooling [numCooling][]float64
	Gamma   [numGamma][]float64

	lb, dbin, idbin float64
}

// entries calls f for every tabulated coefficient in file order.
func (t *Tables) entries(f func(name string, v *[]float64)) {
	for i := range t.Rates {
		f(RateNames[i], &t.Rates[i])
	}
	for i := range t.Cooling {
		f(CoolingNames[i], &t.Cooling[i])
	}
	for i := range t.Gamma {
		f(GammaNames[i], &t.Gamma[i])
	}
}

// numEntries is the number of tabulated coefficients.
const numEntries = numRates + numCooling + numGamma

// init checks t and computes the bin spacing.
func (t *Tables) init() error {
	if !(t.Bounds[0] > 0) || !(t.Bounds[1] > t.Bounds[0]) {
		return fmt.Errorf("primordial: invalid table temperature bounds %v", t.Bounds)
	}
	var err error
	t.entries(func(name string, v *[]float64) {
		if err == nil && len(*v) != TableLength {
			err = fmt.Errorf("primordial: table %s has length %d; it should be %d", name, len(*v), TableLength)
		}
	})
	if err != nil {
		return err
	}
	t.lb = math.Log(t.Bounds[0])
	t.dbin = (math.Log(t.Bounds[1]) - t.lb) / nbins
	t.idbin = 1 / t.dbin
	return nil
}

// Fingerprint returns a content hash of the tabulated values.
func (t *Tables) Fingerprint() string {
	data := make([][]float64, 0, numEntries+1)
	data = append(data, t.Bounds[:])
	t.entries(func(_ string, v *[]float64) { data = append(data, *v) })
	return hash.Floats(data...)
}

// ReadTables reads tables from a NetCDF file with one variable per
// coefficient over a dimension of length TableLength and a two-element
// "bounds" variable.
func ReadTables(rw cdf.ReaderWriterAt) (*Tables, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("primordial: opening table file: %v", err)
	}
	have := make(map[string]bool)
	for _, v := range f.Header.Variables() {
		have[v] = true
	}
	read := func(name string) ([]float64, error) {
		if !have[name] {
			return nil, fmt.Errorf("primordial: table file is missing dataset %s", name)
		}
		r := f.Reader(name, nil, nil)
		buf := r.Zero(-1)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("primordial: reading dataset %s: %v", name, err)
		}
		d, ok := buf.([]float64)
		if !ok {
			return nil, fmt.Errorf("primordial: dataset %s is not double precision", name)
		}
		return d, nil
	}
	t := new(Tables)
	b, err := read("bounds")
	if err != nil {
		return nil, err
	}
	if len(b) != 2 {
		return nil, fmt.Errorf("primordial: bounds dataset has length %d; it should be 2", len(b))
	}
	t.Bounds = [2]float64{b[0], b[1]}
	t.entries(func(name string, v *[]float64) {
		if err == nil {
			*v, err = read(name)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := t.init(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadTableFile reads tables from the named file.
func ReadTableFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("primordial: %v", err)
	}
	defer f.Close()
	return ReadTables(f)
}

// WriteTables writes t in the format read by ReadTables.
func WriteTables(rw cdf.ReaderWriterAt, t *Tables) error {
	if err := t.init(); err != nil {
		return err
	}
	h := cdf.NewHeader([]string{"T", "bound"}, []int{TableLength, 2})
	h.AddVariable("bounds", []string{"bound"}, []float64{0})
	h.AddAttribute("bounds", "description", "lower and upper tabulated temperature")
	h.AddAttribute("bounds", "units", "K")
	t.entries(func(name string, _ *[]float64) {
		h.AddVariable(name, []string{"T"}, []float64{0})
	})
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("primordial: creating table file: %v", err)
	}
	f, err := cdf.Create(rw, h)
	if err != nil {
		return fmt.Errorf("primordial: creating table file: %v", err)
	}
	write := func(name string, data []float64) error {
		w := f.Writer(name, []int{0}, []int{len(data)})
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("primordial: writing dataset %s: %v", name, err)
		}
		return nil
	}
	if err := write("bounds", t.Bounds[:]); err != nil {
		return err
	}
	t.entries(func(name string, v *[]float64) {
		if err == nil {
			err = write(name, *v)
		}
	})
	return err
}

// WriteTableFile writes t to the named file.
func WriteTableFile(path string, t *Tables) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("primordial: %v", err)
	}
	if err := WriteTables(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadTables reads the table file on rank 0 of c and distributes its
// contents to every process. A read failure on rank 0 is returned on
// every process.
func LoadTables(c comm.Communicator, path string, log logrus.FieldLogger) (*Tables, error) {
	var t *Tables
	status := []float64{1}
	var readErr error
	if c.Rank() == 0 {
		t, readErr = ReadTableFile(path)
		if readErr != nil {
			status[0] = 0
		}
	}
	if err := c.Bcast(0, status); err != nil {
		return nil, fmt.Errorf("primordial: broadcasting table status: %v", err)
	}
	if status[0] == 0 {
		if readErr != nil {
			return nil, readErr
		}
		return nil, fmt.Errorf("primordial: rank 0 failed to read table file %s", path)
	}

	buf := make([]float64, 2+numEntries*TableLength)
	if c.Rank() == 0 {
		copy(buf, t.Bounds[:])
		pos := 2
		t.entries(func(_ string, v *[]float64) {
			copy(buf[pos:], *v)
			pos += TableLength
		})
	}
	if err := c.Bcast(0, buf); err != nil {
		return nil, fmt.Errorf("primordial: broadcasting tables: %v", err)
	}
	if c.Rank() != 0 {
		t = &Tables{Bounds: [2]float64{buf[0], buf[1]}}
		pos := 2
		t.entries(func(_ string, v *[]float64) {
			*v = buf[pos : pos+TableLength : pos+TableLength]
			pos += TableLength
		})
		if err := t.init(); err != nil {
			return nil, err
		}
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"file":        path,
			"bounds":      t.Bounds,
			"fingerprint": t.Fingerprint(),
		}).Debug("loaded rate tables")
	}
	return t, nil
}
