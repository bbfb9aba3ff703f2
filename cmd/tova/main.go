package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tova-go/internal/config"
	logger "tova-go/internal/logging"
)

var (
	// Global flags
	projectRoot string
	verbose     bool

	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tova",
	Short: "Continuous performance test of sustained visual attention",
	Long: `tova runs a timed visual attention test in the terminal and reports
omission errors, commission errors and reaction-time statistics.

  tova run       take the test
  tova serve     host the results API the test submits to
  tova simulate  replay a scripted session on a virtual clock`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The logger is built from the loaded configuration.
		if err := config.Init(projectRoot, nil); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		conf := config.Current()
		if verbose {
			conf.Logging.Level = "debug"
		}
		// The terminal UI owns stdout while a test runs.
		if cmd.Name() == "run" {
			conf.Logging.Console = false
		}

		var err error
		log, err = logger.Init(projectRoot, conf.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		zap.ReplaceGlobals(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "directory holding config/ and logs/")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(runCmd, serveCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
