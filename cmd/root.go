package cmd

import (
	"fmt"
	"os"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/config"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	debugMode  bool
	quietMode  bool
	condorRoot string
	dbPath     string
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"condor-root": "condor_root",
	"db":          "db_path",
}

var rootCmd = &cobra.Command{
	Use:           "condorweb",
	Short:         "condorweb: submit, watch and reconcile HTCondor jobs.",
	Version:       config.VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			utils.DebugMode = true
		}
		utils.QuietMode = quietMode

		// Step 1: Load defaults
		config.LoadDefaults()

		// Step 2: Initialize Viper (.env, config file, env vars)
		if err := config.InitViper(); err != nil {
			utils.PrintWarning("%v", err)
		}

		// Step 3: Flags bound to viper keys take precedence
		bindFlags(cmd.Flags())

		// Step 4: Load values from Viper into Global config
		config.LoadFromViper()

		if debugMode {
			config.Global.Debug = true
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("condorweb Version: %s", utils.StyleInfo(config.VERSION))
			if config.Global.CondorRoot != "" {
				utils.PrintDebug("Condor Bin Dir: %s", utils.StylePath(condor.BinDir(config.Global.CondorRoot)))
			} else {
				utils.PrintDebug("Condor Bin Dir: %s", utils.StyleInfo("(PATH)"))
			}
			utils.PrintDebug("Python: %s", utils.StylePath(config.Global.Python))
			utils.PrintDebug("Database: %s", utils.StylePath(config.Global.DBPath))
		}
	},
}

// bindFlags makes explicitly set flags override the matching config keys.
func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		viper.Set(key, f.Value.String())
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra's automatic error printing is silenced. Command failures
		// carry the condor output, which is printed as-is.
		if ce, ok := err.(*condor.CommandError); ok {
			if out := ce.Result.Output; out != "" {
				fmt.Fprintln(os.Stderr, out)
			}
			os.Exit(1)
		}
		utils.PrintError("%v", err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Only print warnings and errors")
	rootCmd.PersistentFlags().StringVar(&condorRoot, "condor-root", "", "HTCondor installation prefix (commands are taken from <prefix>/bin)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path of the execution database")
}
