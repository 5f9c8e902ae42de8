package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NV7150/ImOTAR-sub000/cmd/imotar/commands"
	"github.com/NV7150/ImOTAR-sub000/logger"
)

var rootCmd = &cobra.Command{
	Use:   "imotar",
	Short: "imotar - incremental depth refinement pipeline",
	Long: `imotar - tick-driven depth refinement over paired color/depth streams.

imotar pairs timestamped color and sparse depth frames, refines the
depth a bounded number of executor steps per tick, and publishes each
finished plane into a fixed-size output buffer. One job is in flight
at a time; a gate throttles, drains or aborts the pipeline.

Available commands:
  run      - Run the pipeline against the synthetic sources
  history  - Inspect the job ledger
  config   - Show and edit configuration
  version  - Show build information

Examples:
  imotar run                      # Run until interrupted
  imotar run --frames 300         # Run a bounded 300-frame session
  imotar history ls               # List recent jobs
  imotar config set pipeline.steps_per_tick 4`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console format")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
