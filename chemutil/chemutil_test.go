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
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lnashier/viper"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/science/chem/primordial"
)

// defaultConfig returns a configuration holding the default value of
// every option.
func defaultConfig() *viper.Viper {
	v := viper.New()
	for _, o := range options {
		v.SetDefault(o.name, o.defaultVal)
	}
	return v
}

func TestNewRunConfig(t *testing.T) {
	rc, err := NewRunConfig(defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if rc.Grid.NX != 16 || rc.NOut != 10 || rc.Memory != chemhydro.Unified || rc.Iterative {
		t.Errorf("unexpected defaults: %+v", rc)
	}
	if rc.Stepper.MaxNIters != 4 || rc.Stepper.NLConvCoef != 0.1 {
		t.Errorf("stepper defaults: %+v", rc.Stepper)
	}

	v := defaultConfig()
	v.Set("procgrid", "[2, 0, 1]")
	rc, err = NewRunConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if rc.ProcGrid != [3]int{2, 0, 1} {
		t.Errorf("procgrid: have %v, want [2 0 1]", rc.ProcGrid)
	}
	if rc.RawEnergyCopy {
		t.Error("RawEnergyCopy should be off by default")
	}
	v.Set("RawEnergyCopy", true)
	if rc, err = NewRunConfig(v); err != nil {
		t.Fatal(err)
	}
	if !rc.RawEnergyCopy {
		t.Error("RawEnergyCopy not read")
	}
}

func TestNewRunConfigInvalid(t *testing.T) {
	tests := []struct {
		key string
		val interface{}
	}{
		{"TableFile", ""},
		{"nx", 0},
		{"xr", -1.0},
		{"tf", 0.0},
		{"nout", 0},
		{"gamma", 1.0},
		{"TimeUnits", 0.0},
		{"TemperatureTolerance", -1e-3},
		{"redshift", -1.0},
		{"hmax", 0.0},
		{"maxniters", 0},
		{"nprocs", 0},
		{"procgrid", []int{1, 2}},
		{"procgrid", []int{-1, 1, 1}},
		{"DeviceMemory", "shared"},
	}
	for _, test := range tests {
		v := defaultConfig()
		v.Set(test.key, test.val)
		if _, err := NewRunConfig(v); err == nil {
			t.Errorf("%s=%v should be invalid", test.key, test.val)
		}
	}
	v := defaultConfig()
	v.Set("iterative", true)
	v.Set("maxl", 0)
	if _, err := NewRunConfig(v); err == nil {
		t.Error("maxl=0 should be invalid in iterative mode")
	}
	v = defaultConfig()
	v.Set("hub", "localhost:0")
	v.Set("rank", 2)
	v.Set("size", 2)
	if _, err := NewRunConfig(v); err == nil {
		t.Error("rank 2 of 2 should be invalid")
	}
	if _, err := newLogger("loud", os.Stderr); err == nil {
		t.Error("LogLevel 'loud' should be invalid")
	}
}

// setRunConfig sets the global configuration for a small, quick run.
func setRunConfig(t *testing.T) string {
	dir := t.TempDir()
	tables := filepath.Join(dir, "tables.nc")
	if _, err := SynthTables(tables, primordial.DefaultBounds); err != nil {
		t.Fatal(err)
	}
	for k, v := range map[string]interface{}{
		"config":      "",
		"LogLevel":    "warning",
		"TableFile":   tables,
		"nx":          4,
		"ny":          4,
		"nz":          2,
		"tf":          2e-3,
		"nout":        2,
		"hmax":        1e-3,
		"nprocs":      2,
		"procgrid":    []int{0, 0, 0},
		"iterative":   false,
		"showstats":   true,
		"SummaryFile": filepath.Join(dir, "summary.toml"),
		"PlotFile":    filepath.Join(dir, "history.png"),
	} {
		Cfg.Set(k, v)
	}
	return dir
}

func TestRun(t *testing.T) {
	for _, mode := range []string{"direct", "iterative"} {
		t.Run(mode, func(t *testing.T) {
			dir := setRunConfig(t)
			Cfg.Set("iterative", mode == "iterative")
			if mode == "iterative" {
				Cfg.Set("DeviceMemory", "mirrored")
				defer Cfg.Set("DeviceMemory", "unified")
			}
			Root.SetArgs([]string{"run"})
			if err := Root.Execute(); err != nil {
				t.Fatal(err)
			}

			s, err := ReadSummary(filepath.Join(dir, "summary.toml"))
			if err != nil {
				t.Fatal(err)
			}
			if s.Ranks != 2 {
				t.Errorf("ranks: have %d, want 2", s.Ranks)
			}
			if s.ConfigFingerprint == "" || s.TableFingerprint == "" {
				t.Errorf("missing fingerprints: %q, %q", s.ConfigFingerprint, s.TableFingerprint)
			}
			if s.Mode != mode {
				t.Errorf("mode: have %s, want %s", s.Mode, mode)
			}
			if p := s.ProcGrid[0] * s.ProcGrid[1] * s.ProcGrid[2]; p != 2 {
				t.Errorf("process grid %v has %d processes; want 2", s.ProcGrid, p)
			}
			if len(s.Outputs) != 3 {
				t.Fatalf("outputs: have %d, want 3", len(s.Outputs))
			}
			if last := s.Outputs[2].Time; math.Abs(last-2e-3) > 1e-15 {
				t.Errorf("final time: have %g, want 0.002", last)
			}
			for i, o := range s.Outputs {
				if !(o.TMin > 0 && o.TMin <= o.TMean && o.TMean <= o.TMax) {
					t.Errorf("output %d: inconsistent temperatures %+v", i, o)
				}
			}
			if s.Stats.Steps < 2 {
				t.Errorf("steps: have %d, want at least 2", s.Stats.Steps)
			}
			if s.Conservation.MassChange > 1e-12 {
				t.Errorf("mass should be conserved; relative change %g", s.Conservation.MassChange)
			}
			if _, ok := s.Timers["lsolve"]; !ok {
				t.Errorf("missing linear solve timer in %v", s.Timers)
			}
			if fi, err := os.Stat(filepath.Join(dir, "history.png")); err != nil || fi.Size() == 0 {
				t.Errorf("plot file not written: %v", err)
			}
		})
	}
}

func TestTablesCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synth.nc")
	Cfg.Set("TableFile", path)
	Cfg.Set("TableTMin", 20.0)
	Cfg.Set("TableTMax", 5e3)
	defer func() {
		Cfg.Set("TableTMin", primordial.DefaultBounds[0])
		Cfg.Set("TableTMax", primordial.DefaultBounds[1])
	}()

	var out bytes.Buffer
	Root.SetOutput(&out)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"tables", "synth"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	tab, err := primordial.ReadTableFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tab.Bounds != [2]float64{20, 5e3} {
		t.Errorf("bounds: have %v, want [20 5000]", tab.Bounds)
	}
	if !strings.Contains(out.String(), tab.Fingerprint()) {
		t.Errorf("synth output should contain the fingerprint: %q", out.String())
	}

	out.Reset()
	Root.SetArgs([]string{"tables", "info"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{tab.Fingerprint(), "k02", "gammaH2_1", "T=1000"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output should contain %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "T=10000") {
		t.Error("info should only report temperatures in the table range")
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	Root.SetOutput(&out)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "ChemHydro v" + chemhydro.Version; !strings.Contains(out.String(), want) {
		t.Errorf("have %q, want %q", out.String(), want)
	}
}
