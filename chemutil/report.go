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

package chemutil

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/imex"
	"github.com/spatialmodel/chemhydro/science/chem/primordial"
)

// Output holds the temperature statistics [K] at one output time.
type Output struct {
	Time  float64 `toml:"time"`
	TMin  float64 `toml:"tmin"`
	TMax  float64 `toml:"tmax"`
	TMean float64 `toml:"tmean"`
}

// Summary describes a completed simulation.
type Summary struct {
	Version          string `toml:"version"`
	Ranks            int    `toml:"ranks"`
	Grid             [3]int `toml:"grid"`
	ProcGrid         [3]int `toml:"procgrid"`
	Mode             string `toml:"mode"`
	Memory           string `toml:"memory"`
	TableFingerprint string `toml:"table_fingerprint"`

	// ConfigFingerprint identifies the run settings.
	ConfigFingerprint string `toml:"config_fingerprint"`

	T0 float64 `toml:"t0"`
	Tf float64 `toml:"tf"`

	// Conservation is the latest conservation check, if any.
	Conservation chemhydro.ConservationReport `toml:"conservation"`

	Stats   imex.Stats         `toml:"stats"`
	Timers  map[string]float64 `toml:"timers"`
	Outputs []Output           `toml:"outputs"`
}

// WriteFile writes s to path in TOML format.
func (s *Summary) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chemhydro: creating summary file: %v", err)
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return fmt.Errorf("chemhydro: writing summary file: %v", err)
	}
	return f.Close()
}

// ReadSummary reads a summary written by WriteFile.
func ReadSummary(path string) (*Summary, error) {
	s := new(Summary)
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, fmt.Errorf("chemhydro: reading summary file: %v", err)
	}
	return s, nil
}

// Plot saves a PNG plot of the minimum, mean and maximum temperature
// over time to path.
func (s *Summary) Plot(path string) error {
	p := plot.New()
	p.Title.Text = "Temperature"
	p.X.Label.Text = "time [code units]"
	p.Y.Label.Text = "T [K]"
	lines := []struct {
		name string
		v    func(Output) float64
		c    color.Color
	}{
		{"min", func(o Output) float64 { return o.TMin }, color.RGBA{B: 255, A: 255}},
		{"mean", func(o Output) float64 { return o.TMean }, color.Black},
		{"max", func(o Output) float64 { return o.TMax }, color.RGBA{R: 255, A: 255}},
	}
	for _, l := range lines {
		xy := make(plotter.XYs, len(s.Outputs))
		for i, o := range s.Outputs {
			xy[i].X, xy[i].Y = o.Time, l.v(o)
		}
		line, err := plotter.NewLine(xy)
		if err != nil {
			return err
		}
		line.Color = l.c
		p.Add(line)
		p.Legend.Add(l.name, line)
	}
	if err := p.Save(5*vg.Inch, 3.5*vg.Inch, path); err != nil {
		return fmt.Errorf("chemhydro: saving plot: %v", err)
	}
	return nil
}

// SynthTables writes tables generated from analytic fits over the
// temperature range bounds to path and returns their fingerprint.
func SynthTables(path string, bounds [2]float64) (string, error) {
	t, err := primordial.SyntheticTables(bounds)
	if err != nil {
		return "", err
	}
	if err := primordial.WriteTableFile(path, t); err != nil {
		return "", err
	}
	return t.Fingerprint(), nil
}

// infoTemperatures are the temperatures [K] at which TableInfo reports
// coefficient values.
var infoTemperatures = []float64{10, 100, 1e3, 1e4}

// TableInfo writes a description of the table file at path to w.
func TableInfo(w io.Writer, path string) error {
	t, err := primordial.ReadTableFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "file: %s\nfingerprint: %s\ntemperature range: %g to %g K\n\n", path, t.Fingerprint(), t.Bounds[0], t.Bounds[1])
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprint(tw, "name")
	var temps []float64
	for _, T := range infoTemperatures {
		if T >= t.Bounds[0] && T <= t.Bounds[1] {
			temps = append(temps, T)
			fmt.Fprintf(tw, "\tT=%g", T)
		}
	}
	fmt.Fprintln(tw)
	var names []string
	names = append(names, primordial.RateNames[:]...)
	names = append(names, primordial.CoolingNames[:]...)
	names = append(names, primordial.GammaNames[:]...)
	for _, name := range names {
		fmt.Fprint(tw, name)
		for _, T := range temps {
			v, _, err := t.Value(name, T)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "\t%.4g", v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
