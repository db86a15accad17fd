package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	run "github.com/inferbench/bench-server/cmd/bench/run"
	"github.com/inferbench/bench-server/internal/config"
)

const envPrefix = "BENCH"

var Cmd = &cobra.Command{
	Use:   "bench",
	Short: "Inference benchmark server CLI",
	Long:  "Runs, schedules and queries inference benchmarks for transformer models on node and browser runtimes",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set global viper options
		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`, // convert hyphens to underscores
			`.`, `_`, // convert dots to underscores
		))
		viper.AutomaticEnv()

		// Bind all flags from the current command persistent parent flags
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		// Load config and env files
		if err := config.LoadEnvAndConfigFiles(); err != nil {
			return err
		}

		return nil
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands define their own PersistentPreRunE hooks; run parents first.
	cobra.EnableTraverseRunHooks = true

	pflags := Cmd.PersistentFlags()

	pflags.String("bench-home", "", "Path to the bench home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	// Bind flags to viper
	viper.BindPFlag("bench_home", pflags.Lookup("bench-home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	// Add subcommands
	Cmd.AddCommand(run.Cmd, submitCmd, sweepCmd, resultsCmd, dbCmd, apiKeyCmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
