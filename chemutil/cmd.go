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

// Package chemutil contains the command-line interface of the ChemHydro
// model and the functions it uses to set up and run simulations.
package chemutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/chemhydro"
	"github.com/spatialmodel/chemhydro/science/chem/primordial"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	gridFlags := []*pflag.FlagSet{runCmd.Flags()}
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print:
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "TableFile",
			usage: `
              TableFile is the path to the NetCDF file of tabulated reaction
              rates, cooling coefficients and molecular adiabatic indices.
              It can include environment variables.`,
			shorthand:  "t",
			defaultVal: "cvklu_tables.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), synthCmd.Flags(), infoCmd.Flags()},
		},
		{
			name: "TableTMin",
			usage: `
              TableTMin is the lowest tabulated temperature [K] of generated tables.`,
			defaultVal: primordial.DefaultBounds[0],
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "TableTMax",
			usage: `
              TableTMax is the highest tabulated temperature [K] of generated tables.`,
			defaultVal: primordial.DefaultBounds[1],
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{name: "nx", usage: `
              nx is the number of grid cells in the x direction.`, defaultVal: 16, flagsets: gridFlags},
		{name: "ny", usage: `
              ny is the number of grid cells in the y direction.`, defaultVal: 16, flagsets: gridFlags},
		{name: "nz", usage: `
              nz is the number of grid cells in the z direction.`, defaultVal: 16, flagsets: gridFlags},
		{name: "xl", usage: `
              xl is the lower domain bound in the x direction [code units].`, defaultVal: 0.0, flagsets: gridFlags},
		{name: "xr", usage: `
              xr is the upper domain bound in the x direction [code units].`, defaultVal: 1.0, flagsets: gridFlags},
		{name: "yl", usage: `
              yl is the lower domain bound in the y direction [code units].`, defaultVal: 0.0, flagsets: gridFlags},
		{name: "yr", usage: `
              yr is the upper domain bound in the y direction [code units].`, defaultVal: 1.0, flagsets: gridFlags},
		{name: "zl", usage: `
              zl is the lower domain bound in the z direction [code units].`, defaultVal: 0.0, flagsets: gridFlags},
		{name: "zr", usage: `
              zr is the upper domain bound in the z direction [code units].`, defaultVal: 1.0, flagsets: gridFlags},
		{
			name: "t0",
			usage: `
              t0 is the initial time [code units].`,
			defaultVal: 0.0,
			flagsets:   gridFlags,
		},
		{
			name: "tf",
			usage: `
              tf is the final time [code units].`,
			defaultVal: 0.1,
			flagsets:   gridFlags,
		},
		{
			name: "nout",
			usage: `
              nout is the number of evenly spaced output times.`,
			defaultVal: 10,
			flagsets:   gridFlags,
		},
		{
			name: "gamma",
			usage: `
              gamma is the adiabatic index of the fluid.`,
			defaultVal: 5. / 3.,
			flagsets:   gridFlags,
		},
		{
			name: "MassUnits",
			usage: `
              MassUnits is the mass of one code unit [g].`,
			defaultVal: 1.0,
			flagsets:   gridFlags,
		},
		{
			name: "LengthUnits",
			usage: `
              LengthUnits is the length of one code unit [cm].`,
			defaultVal: 1.0,
			flagsets:   gridFlags,
		},
		{
			name: "TimeUnits",
			usage: `
              TimeUnits is the duration of one code unit [s].`,
			defaultVal: 1.0,
			flagsets:   gridFlags,
		},
		{
			name: "redshift",
			usage: `
              redshift is the cosmological redshift used for Compton cooling.`,
			defaultVal: 0.0,
			flagsets:   gridFlags,
		},
		{
			name: "procgrid",
			usage: `
              procgrid is the number of processes in the x, y and z
              directions. Zero entries are filled in automatically.`,
			defaultVal: []int{0, 0, 0},
			flagsets:   gridFlags,
		},
		{
			name: "nprocs",
			usage: `
              nprocs is the number of processes to run within this program.
              It is ignored when hub is set.`,
			shorthand:  "n",
			defaultVal: 1,
			flagsets:   gridFlags,
		},
		{
			name: "hub",
			usage: `
              hub is the "host:port" address of the process group hub for
              runs spread over several programs. Rank 0 starts the hub.`,
			defaultVal: "",
			flagsets:   gridFlags,
		},
		{
			name: "rank",
			usage: `
              rank is the rank of this program in a multi-program run.`,
			defaultVal: 0,
			flagsets:   gridFlags,
		},
		{
			name: "size",
			usage: `
              size is the number of programs in a multi-program run.`,
			defaultVal: 1,
			flagsets:   gridFlags,
		},
		{
			name: "iterative",
			usage: `
              iterative specifies whether to solve the chemistry linear
              systems with matrix-free GMRES instead of per-cell LU
              factorization.`,
			defaultVal: false,
			flagsets:   gridFlags,
		},
		{
			name: "DenseJacobian",
			usage: `
              DenseJacobian specifies whether to store full per-cell
              Jacobian blocks instead of the sparse pattern.`,
			defaultVal: false,
			flagsets:   gridFlags,
		},
		{name: "hmax", usage: `
              hmax is the time step [code units].`, defaultVal: 1e-3, flagsets: gridFlags},
		{name: "maxnef", usage: `
              maxnef is the largest number of failed attempts per step.`, defaultVal: 10, flagsets: gridFlags},
		{name: "mxsteps", usage: `
              mxsteps is the largest number of steps between outputs.`, defaultVal: 100000, flagsets: gridFlags},
		{name: "maxniters", usage: `
              maxniters is the largest number of Newton iterations per step.`, defaultVal: 4, flagsets: gridFlags},
		{name: "nlconvcoef", usage: `
              nlconvcoef is the Newton convergence threshold.`, defaultVal: 0.1, flagsets: gridFlags},
		{name: "rtol", usage: `
              rtol is the relative tolerance.`, defaultVal: 1e-4, flagsets: gridFlags},
		{name: "atol", usage: `
              atol is the absolute tolerance.`, defaultVal: 1e-9, flagsets: gridFlags},
		{name: "maxl", usage: `
              maxl is the largest Krylov subspace dimension of GMRES.`, defaultVal: 10, flagsets: gridFlags},
		{
			name: "ClampNegative",
			usage: `
              ClampNegative specifies whether to treat negative species
              abundances as zero when evaluating the chemistry.`,
			defaultVal: false,
			flagsets:   gridFlags,
		},
		{
			name: "TemperatureTolerance",
			usage: `
              TemperatureTolerance is the relative temperature change below
              which the temperature iteration stops early. Zero always
              runs the full number of iterations.`,
			defaultVal: 0.0,
			flagsets:   gridFlags,
		},
		{
			name: "DeviceMemory",
			usage: `
              DeviceMemory is the layout of chemistry buffers: "unified"
              shares one array between host and device views and "mirrored"
              keeps separate copies.`,
			defaultVal: "unified",
			flagsets:   gridFlags,
		},
		{
			name: "EnergySource",
			usage: `
              EnergySource is an expression in x, y, z and t giving an
              external source of total energy density [code units]. It can
              use the functions exp, sqrt and sin.`,
			defaultVal: "",
			flagsets:   gridFlags,
		},
		{
			name: "RawEnergyCopy",
			usage: `
              RawEnergyCopy specifies whether to store the fluid total
              energy derivative in the chemistry internal energy equation
              without converting it to chemistry units.`,
			defaultVal: false,
			flagsets:   gridFlags,
		},
		{
			name: "showstats",
			usage: `
              showstats specifies whether to log field statistics and a
              conservation check at every output.`,
			defaultVal: false,
			flagsets:   gridFlags,
		},
		{
			name: "SummaryFile",
			usage: `
              SummaryFile is the path of a TOML summary of the run.`,
			defaultVal: "",
			flagsets:   gridFlags,
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path of a PNG plot of the temperature history.`,
			defaultVal: "",
			flagsets:   gridFlags,
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CHEMHYDRO")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(tablesCmd)
	tablesCmd.AddCommand(synthCmd)
	tablesCmd.AddCommand(infoCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("chemhydro: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "chemhydro",
	Short: "A coupled chemistry and hydrodynamics solver.",
	Long: `ChemHydro integrates a primordial chemistry network coupled to a
fluid with an implicit-explicit time integrator, on a grid that is divided
among several processes. Use the subcommands specified below to access the
model functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CHEMHYDRO_var' where 'var'
is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ChemHydro.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ChemHydro v%s\n", chemhydro.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the primordial blast simulation.",
	Long: `run integrates the primordial chemistry blast problem from t0 to tf,
reporting at nout evenly spaced times.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(Cfg.GetString("LogLevel"), cmd.OutOrStderr())
		if err != nil {
			return err
		}
		rc, err := NewRunConfig(Cfg)
		if err != nil {
			return err
		}
		_, err = Run(rc, log)
		return err
	},
	DisableAutoGenTag: true,
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Work with rate table files.",
	Long: `tables creates and inspects the NetCDF files of tabulated
reaction rates and cooling coefficients.`,
	DisableAutoGenTag: true,
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a table file from analytic fits.",
	Long: `synth evaluates analytic fits of the primordial reaction rates and
cooling coefficients between TableTMin and TableTMax and writes them to
TableFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.ExpandEnv(Cfg.GetString("TableFile"))
		bounds := [2]float64{Cfg.GetFloat64("TableTMin"), Cfg.GetFloat64("TableTMax")}
		fp, err := SynthTables(path, bounds)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %s (fingerprint %s)\n", path, fp)
		return nil
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe a table file.",
	Long: `info prints the temperature range and content fingerprint of
TableFile, and the value of each coefficient at a few temperatures.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return TableInfo(cmd.OutOrStdout(), os.ExpandEnv(Cfg.GetString("TableFile")))
	},
	DisableAutoGenTag: true,
}
