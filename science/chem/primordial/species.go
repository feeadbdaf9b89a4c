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

// Package primordial implements a ten-species primordial gas chemistry
// network (molecular, atomic and ionized hydrogen, helium ions, electrons
// and specific internal energy) with tabulated, temperature-dependent
// reaction rates and cooling coefficients.
package primordial

// Indices of individual species in the per-cell chemistry block.
const (
	H2I int = iota
	H2II
	HI
	HII
	HM
	HeI
	HeII
	HeIII
	DE
	GE
)

// NumSpecies is the number of values per cell in the chemistry block.
const NumSpecies = 10

// SpeciesNames gives the conventional name of each species index.
var SpeciesNames = [NumSpecies]string{
	"H2_1", "H2_2", "H_1", "H_2", "H_m0", "He_1", "He_2", "He_3", "de", "ge",
}

// physical constants
const (
	kb     = 1.3806504e-16 // erg/K, Boltzmann constant used by the temperature solve
	kbInit = 1.3806488e-16 // erg/K, Boltzmann constant used for initial conditions
	mh     = 1.67e-24      // g, hydrogen mass
	gammaA = 5. / 3.       // adiabatic index of monatomic species

	// Atomic masses [mH]
	mwH2 = 2.0
	mwH  = 1.00794
	mwHe = 4.002602

	tCMB = 2.73 // K, present-day CMB temperature
)

// Temperature used to seed the first temperature solve in each cell.
const initialTemperature = 1000.

// Optical depth approximation constants [g cm-3].
const (
	cieDensityScale = 3.3e-8
	h2DensityScale  = 1.34e-14
)

// Identifiers of the tabulated reaction rates.
const (
	k01 int = iota
	k02
	k03
	k04
	k05
	k06
	k07
	k08
	k09
	k10
	k11
	k12
	k13
	k14
	k15
	k16
	k17
	k18
	k19
	k21
	k22
	numRates
)

// RateNames are the table keys of the reaction rates.
var RateNames = [numRates]string{
	"k01", "k02", "k03", "k04", "k05", "k06", "k07", "k08", "k09", "k10",
	"k11", "k12", "k13", "k14", "k15", "k16", "k17", "k18", "k19", "k21", "k22",
}

// Identifiers of the tabulated cooling and heating coefficients.
const (
	brem int = iota
	ceHeI
	ceHeII
	ceHI
	cieCo
	ciHeI
	ciHeII
	ciHeIS
	ciHI
	compton
	gael
	gaH2
	gaHe
	gaHI
	gaHp
	h2lte
	h2mcool
	h2mheat
	ncrd1
	ncrd2
	ncrn
	reHeII1
	reHeII2
	reHeIII
	reHII
	numCooling
)

// CoolingNames are the table keys of the cooling coefficients.
var CoolingNames = [numCooling]string{
	"brem_brem", "ceHeI_ceHeI", "ceHeII_ceHeII", "ceHI_ceHI", "cie_cooling_cieco",
	"ciHeI_ciHeI", "ciHeII_ciHeII", "ciHeIS_ciHeIS", "ciHI_ciHI", "compton_comp_",
	"gloverabel08_gael", "gloverabel08_gaH2", "gloverabel08_gaHe", "gloverabel08_gaHI",
	"gloverabel08_gaHp", "gloverabel08_h2lte", "h2formation_h2mcool", "h2formation_h2mheat",
	"h2formation_ncrd1", "h2formation_ncrd2", "h2formation_ncrn", "reHeII1_reHeII1",
	"reHeII2_reHeII2", "reHeIII_reHeIII", "reHII_reHII",
}

// Identifiers of the tabulated molecular adiabatic indices.
const (
	gammaH2I int = iota
	dgammaH2IdT
	gammaH2II
	dgammaH2IIdT
	numGamma
)

// GammaNames are the table keys of the molecular adiabatic indices and
// their temperature derivatives.
var GammaNames = [numGamma]string{"gammaH2_1", "dgammaH2_1_dT", "gammaH2_2", "dgammaH2_2_dT"}
