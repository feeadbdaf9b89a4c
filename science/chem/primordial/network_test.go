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
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/comm"
)

// testCell returns a partly ionized, partly molecular physical
// composition at temperature T.
func testCell(n *Network, T float64) []float64 {
	y := []float64{1, 1e-3, 100, 10, 1e-4, 8, 1, 0.5, 0, 0}
	y[DE] = y[HII] + y[HeII] + 2*y[HeIII] - y[HM] + y[H2II]
	y[GE] = n.SpecificEnergy(y, T)
	return y
}

// midBin returns a temperature in the middle of a table interval.
func midBin(tab *Tables, i int) float64 {
	temps := tab.Temperatures()
	return math.Sqrt(temps[i] * temps[i+1])
}

func newTestNetwork(t *testing.T, tab *Tables, ncells int, opts Options) *Network {
	n, err := New(tab, ncells, opts)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSparsePattern(t *testing.T) {
	p := SparsePattern()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.NNZ() != 64 {
		t.Errorf("nonzeros: have %d, want 64", p.NNZ())
	}
	want := []int{0, 7, 14, 21, 28, 34, 38, 43, 47, 56, 64}
	if diff := pretty.Diff(p.RowPtr, want); len(diff) > 0 {
		t.Errorf("row pointers: %v", diff)
	}
}

func TestPrepareScaling(t *testing.T) {
	tab := testTables(t)
	n := newTestNetwork(t, tab, 2, Options{})
	y := append(testCell(n, 3000), testCell(n, 500)...)
	y[HM] = 0
	orig := append([]float64(nil), y...)
	if err := n.Prepare(y); err != nil {
		t.Fatal(err)
	}
	for i, v := range y {
		if orig[i] == 0 {
			if v != 0 {
				t.Errorf("entry %d: have %g, want 0", i, v)
			}
			continue
		}
		if different(math.Abs(v), 1, 1e-15) {
			t.Errorf("normalized entry %d: have %g, want ±1", i, v)
		}
	}
	n.ApplyScaling(y)
	for i := range y {
		if different(y[i], orig[i], 1e-15) {
			t.Errorf("round trip entry %d: have %g, want %g", i, y[i], orig[i])
		}
	}
	n.UnapplyScaling(y)
	n.ApplyScaling(y)
	for i := range y {
		if different(y[i], orig[i], 1e-15) {
			t.Errorf("second round trip entry %d: have %g, want %g", i, y[i], orig[i])
		}
	}
	m := mh * (2*(1+1e-3) + mwH*(100+10) + mwHe*(8+1+0.5))
	if different(n.MassDensity(0), m, 1e-12) {
		t.Errorf("mass density: have %g, want %g", n.MassDensity(0), m)
	}
	if want := (1 - math.Exp(-1e-5)) / 1e-5; different(n.cieOda[0], want, 1e-12) {
		t.Errorf("optically thin CIE factor: have %g, want %g", n.cieOda[0], want)
	}
	if n.h2Oda[0] != 1 {
		t.Errorf("optically thin H2 factor: have %g, want 1", n.h2Oda[0])
	}
	if n.Temperature(1) != initialTemperature {
		t.Errorf("temperature seed: have %g, want %g", n.Temperature(1), initialTemperature)
	}
}

func TestPrepareInvalid(t *testing.T) {
	n := newTestNetwork(t, testTables(t), 1, Options{})
	if err := n.Prepare(make([]float64, NumSpecies)); err == nil {
		t.Error("should be an error for zero density")
	}
	if err := n.Prepare(make([]float64, 3)); err == nil {
		t.Error("should be an error for the wrong length")
	}
	if _, err := New(nil, 1, Options{}); err == nil {
		t.Error("should be an error for nil tables")
	}
}

func TestTemperature(t *testing.T) {
	tab := testTables(t)
	n := newTestNetwork(t, tab, 1, Options{})
	for _, T := range []float64{50, 300, 3000, 2e4} {
		y := testCell(n, T)
		if have := n.CellTemperature(y); different(have, T, 1e-8) {
			t.Errorf("T=%g: have %g", T, have)
		}
	}
	y := testCell(n, 3000)
	y[GE] *= 1e6
	if have := n.CellTemperature(y); have != tab.Bounds[1] {
		t.Errorf("clamped temperature: have %g, want %g", have, tab.Bounds[1])
	}
	y[GE] = -1
	if have := n.CellTemperature(y); have != tab.Bounds[0] {
		t.Errorf("clamped temperature: have %g, want %g", have, tab.Bounds[0])
	}
}

func TestTemperatureTolerance(t *testing.T) {
	tab := testTables(t)
	n := newTestNetwork(t, tab, 1, Options{TemperatureTolerance: 1e-10})
	y := testCell(n, 3000)
	if have := n.CellTemperature(y); different(have, 3000, 1e-8) {
		t.Errorf("have %g, want 3000", have)
	}
}

// TestTemperatureDerivative checks dT/de against central differences of
// the temperature solve where the molecular adiabatic index changes
// with temperature.
func TestTemperatureDerivative(t *testing.T) {
	tab := testTables(t)
	n := newTestNetwork(t, tab, 1, Options{})
	for _, bin := range []int{400, 445, 460, 520} {
		T := midBin(tab, bin)
		y := testCell(n, T)
		y[H2I] = 50
		y[GE] = n.SpecificEnergy(y, T)
		var p [NumSpecies]float64
		copy(p[:], y)

		var w coefficients
		T0, dTge := n.temperature(&p, T, &w)
		if different(T0, T, 1e-10) {
			t.Fatalf("temperature: have %g, want %g", T0, T)
		}
		h := 1e-7 * p[GE]
		pp, pm := p, p
		pp[GE] += h
		pm[GE] -= h
		Tp, _ := n.temperature(&pp, T, &w)
		Tm, _ := n.temperature(&pm, T, &w)
		if want := (Tp - Tm) / (2 * h); different(dTge, want, 1e-6) {
			t.Errorf("T=%.2f dT/de: have %g, want %g", T, dTge, want)
		}
		// Ignoring the temperature dependence of the adiabatic index
		// gives a measurably different derivative.
		if fixed := T / n.SpecificEnergy(y, T); !different(dTge, fixed, 1e-4) {
			t.Errorf("T=%.2f dT/de %g should depend on the adiabatic index slope (constant index: %g)", T, dTge, fixed)
		}
	}
}

// TestJacobian compares the analytic Jacobian with central differences
// of the right-hand side. Species columns are partial derivatives at
// fixed temperature; the energy column includes the temperature
// dependence of every coefficient.
func TestJacobian(t *testing.T) {
	tab := testTables(t)
	tab.ConstantGamma(1.4)
	for _, T := range []float64{midBin(tab, 712), midBin(tab, 850), midBin(tab, 400)} {
		n := newTestNetwork(t, tab, 1, Options{Redshift: 3})
		y := testCell(n, T)
		var p [NumSpecies]float64
		copy(p[:], y)
		if err := n.Prepare(y); err != nil {
			t.Fatal(err)
		}

		var w coefficients
		T0, dTge := n.temperature(&p, T, &w)
		if different(T0, T, 1e-10) {
			t.Fatalf("temperature: have %g, want %g", T0, T)
		}
		tab.interpolate(T0, &w)
		var J [NumSpecies][NumSpecies]float64
		n.cellJacobian(0, &p, &w, dTge, &J)

		var fd [NumSpecies][NumSpecies]float64
		for c := 0; c < NumSpecies; c++ {
			h := 1e-6 * math.Abs(p[c])
			var fp, fm [NumSpecies]float64
			pp, pm := p, p
			pp[c] += h
			pm[c] -= h
			if c == GE {
				var wp, wm coefficients
				Tp, _ := n.temperature(&pp, T0, &wp)
				Tm, _ := n.temperature(&pm, T0, &wm)
				tab.interpolate(Tp, &wp)
				tab.interpolate(Tm, &wm)
				n.cellRHS(0, &pp, &fp, &wp)
				n.cellRHS(0, &pm, &fm, &wm)
			} else {
				n.cellRHS(0, &pp, &fp, &w)
				n.cellRHS(0, &pm, &fm, &w)
			}
			for r := range fd {
				fd[r][c] = (fp[r] - fm[r]) / (2 * h)
			}
		}

		pattern := SparsePattern()
		for r := 0; r < NumSpecies; r++ {
			// Compare derivatives scaled by the column magnitude.
			var rowScale float64
			for c := 0; c < NumSpecies; c++ {
				rowScale = math.Max(rowScale, math.Abs(J[r][c]*p[c]))
			}
			for c := 0; c < NumSpecies; c++ {
				have, want := J[r][c]*p[c], fd[r][c]*p[c]
				if math.Abs(have-want) > 1e-6*rowScale+1e-300 {
					t.Errorf("T=%.1f J[%s][%s]: have %g, want %g", T, SpeciesNames[r], SpeciesNames[c], J[r][c], fd[r][c])
				}
				if pattern.Find(r, c) < 0 && J[r][c] != 0 {
					t.Errorf("T=%.1f J[%s][%s] = %g is outside the sparsity pattern", T, SpeciesNames[r], SpeciesNames[c], J[r][c])
				}
			}
		}
	}
}

func TestJacobianDenseMatchesSparse(t *testing.T) {
	tab := testTables(t)
	const ncells = 3
	sparse := newTestNetwork(t, tab, ncells, Options{})
	dense := newTestNetwork(t, tab, ncells, Options{DenseJacobian: true})
	var y []float64
	for _, T := range []float64{200, 3000, 9000} {
		y = append(y, testCell(sparse, T)...)
	}
	y2 := append([]float64(nil), y...)
	if err := sparse.Prepare(y); err != nil {
		t.Fatal(err)
	}
	if err := dense.Prepare(y2); err != nil {
		t.Fatal(err)
	}
	js := chemhydro.NewBlockMatrix(ncells, sparse.Pattern())
	jd := chemhydro.NewBlockMatrix(ncells, dense.Pattern())
	if err := sparse.Jacobian(0, y, js); err != nil {
		t.Fatal(err)
	}
	if err := dense.Jacobian(0, y2, jd); err != nil {
		t.Fatal(err)
	}
	for b := 0; b < ncells; b++ {
		for r := 0; r < NumSpecies; r++ {
			for c := 0; c < NumSpecies; c++ {
				if have, want := js.At(b, r, c), jd.At(b, r, c); have != want {
					t.Errorf("cell %d (%d,%d): have %g, want %g", b, r, c, have, want)
				}
			}
		}
	}
}

func TestRHS(t *testing.T) {
	tab := testTables(t)
	const ncells = 4
	n := newTestNetwork(t, tab, ncells, Options{})
	var y []float64
	for i := 0; i < ncells; i++ {
		y = append(y, testCell(n, 1000+1000*float64(i))...)
	}
	phys := append([]float64(nil), y...)
	if err := n.Prepare(y); err != nil {
		t.Fatal(err)
	}
	ydot := make([]float64, len(y))
	if err := n.RHS(0, y, ydot); err != nil {
		t.Fatal(err)
	}
	for cell := 0; cell < ncells; cell++ {
		want := 1000 + 1000*float64(cell)
		if different(n.Temperature(cell), want, 1e-8) {
			t.Errorf("cell %d temperature: have %g, want %g", cell, n.Temperature(cell), want)
		}
		var p, f [NumSpecies]float64
		var w coefficients
		n.physical(cell, y, &p)
		if different(p[HI], phys[cell*NumSpecies+HI], 1e-15) {
			t.Errorf("cell %d physical HI: have %g, want %g", cell, p[HI], phys[cell*NumSpecies+HI])
		}
		tab.interpolate(n.Temperature(cell), &w)
		n.cellRHS(cell, &p, &f, &w)
		for s := range f {
			have := ydot[cell*NumSpecies+s] * n.Scale()[cell*NumSpecies+s]
			if different(have, f[s], 1e-12) {
				t.Errorf("cell %d %s: have %g, want %g", cell, SpeciesNames[s], have, f[s])
			}
		}
		// Charge conservation of the reaction network.
		charge := f[HII] + f[HeII] + 2*f[HeIII] - f[HM] + f[H2II] - f[DE]
		size := math.Abs(f[HII]) + math.Abs(f[HeII]) + 2*math.Abs(f[HeIII]) + math.Abs(f[HM]) + math.Abs(f[H2II]) + math.Abs(f[DE])
		if math.Abs(charge) > 1e-12*size+1e-300 {
			t.Errorf("cell %d: charge is not conserved: %g", cell, charge)
		}
	}
}

func TestRHSNonFinite(t *testing.T) {
	n := newTestNetwork(t, testTables(t), 1, Options{})
	y := testCell(n, 1000)
	if err := n.Prepare(y); err != nil {
		t.Fatal(err)
	}
	y[HI] = math.NaN()
	ydot := make([]float64, len(y))
	err := n.RHS(0, y, ydot)
	if err == nil {
		t.Fatal("should be an error")
	}
	if s := chemhydro.StatusOf(err); s <= 0 {
		t.Errorf("status: have %d, want >0", s)
	}
}

func TestClampNegative(t *testing.T) {
	n := newTestNetwork(t, testTables(t), 1, Options{ClampNegative: true})
	y := testCell(n, 1000)
	if err := n.Prepare(y); err != nil {
		t.Fatal(err)
	}
	y[HM] = -1
	var p [NumSpecies]float64
	n.physical(0, y, &p)
	if p[HM] != 0 {
		t.Errorf("have %g, want 0", p[HM])
	}
}

func TestBlast(t *testing.T) {
	g := chemhydro.Grid{NX: 8, NY: 8, NZ: 8, XR: 1, YR: 1, ZR: 1}
	u, err := chemhydro.NewUnits(mh, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	b := DefaultBlast()
	ext, err := chemhydro.Decompose(g, [3]int{1, 1, 1}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	st := chemhydro.NewState(ext, NumSpecies, chemhydro.Unified)
	if err := b.Initialize(comm.Self{}, st, u, nil); err != nil {
		t.Fatal(err)
	}
	chem := st.Data(chemhydro.Chemistry)
	rho := st.Data(chemhydro.Density)
	et := st.Data(chemhydro.TotalEnergy)
	for cell := 0; cell < ext.NumCells(); cell++ {
		y := chem[cell*NumSpecies : (cell+1)*NumSpecies]
		for s := 0; s < DE; s++ {
			if !(y[s] > 0) {
				t.Fatalf("cell %d %s: have %g, want >0", cell, SpeciesNames[s], y[s])
			}
		}
		m := mh * (mwH2*mwH*(y[H2I]+y[H2II]) + mwH*(y[HI]+y[HII]+y[HM]) + mwHe*(y[HeI]+y[HeII]+y[HeIII]))
		if different(m, rho[cell]*u.Density, 1e-12) {
			t.Errorf("cell %d density: have %g, want %g", cell, m, rho[cell]*u.Density)
		}
		if rho[cell]*u.Density < b.Density0 {
			t.Errorf("cell %d density %g is below background", cell, rho[cell]*u.Density)
		}
		if different(et[cell], y[GE]/u.Energy, 1e-14) {
			t.Errorf("cell %d energy: have %g, want %g", cell, et[cell], y[GE]/u.Energy)
		}
	}
}

func TestClumpsShared(t *testing.T) {
	g := chemhydro.Grid{NX: 8, NY: 8, NZ: 8, XR: 1, YR: 1, ZR: 1}
	b := DefaultBlast()
	var clumps [2][]Clump
	err := comm.Run(2, func(c comm.Communicator) error {
		cl, err := b.Clumps(c, g)
		clumps[c.Rank()] = cl
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(clumps[0]) != 2*b.ClumpsPerProc {
		t.Fatalf("have %d clumps, want %d", len(clumps[0]), 2*b.ClumpsPerProc)
	}
	if diff := pretty.Diff(clumps[0], clumps[1]); len(diff) > 0 {
		t.Errorf("ranks disagree: %v", diff)
	}
	for _, cl := range clumps[0] {
		if cl.Radius < b.MinClumpRadius || cl.Radius > b.MaxClumpRadius {
			t.Errorf("radius %g out of range", cl.Radius)
		}
	}
}
