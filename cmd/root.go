package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "specdrive",
	Short: "Specification-driven development pipeline",
	Long: `Specdrive turns machine-readable specifications into validated,
resumable implementation runs. A specification passes through structural
and semantic gates, a scope analysis, an adversarial review, and
AI-backed test and implementation generation, with every step recorded
in a run directory so an interrupted run picks up where it stopped.

Available commands:
  validate - Parse a spec and report gate and scope results
  run      - Execute the full pipeline against a spec
  apply    - Apply a unified diff with strict verification
  runs     - List recorded pipeline runs
  version  - Print version information`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}
