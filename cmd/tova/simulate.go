package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tova-go/internal/config"
	"tova-go/internal/simulate"
	"tova-go/internal/sink"
)

var simulateFlags struct {
	submit bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.yaml>...",
	Short: "Replay scripted sessions on a virtual clock",
	Long: `Runs each script against a fresh session on a virtual clock and prints
the scored outcome. Scripts may list expected figures; any mismatch makes
the command fail.

With --submit the outcomes are delivered like real sessions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulations,
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateFlags.submit, "submit", false, "submit each outcome to the configured sink")
}

func runSimulations(cmd *cobra.Command, paths []string) error {
	conf := config.Current()
	base := conf.Test.Engine()

	var submitter *sink.Submitter
	if simulateFlags.submit {
		var resultSink sink.Sink
		if conf.Sink.URL != "" {
			resultSink = sink.NewHTTP(conf.Sink.URL, conf.Sink.Timeout())
		}
		submitter = sink.NewSubmitter(resultSink, sink.NewPendingStore(resolve(conf.Sink.PendingDir)), conf.Sink.Timeout(), log)
	}

	var failed error
	for _, path := range paths {
		script, err := simulate.Load(path)
		if err != nil {
			return err
		}
		report, err := simulate.Run(script, base, log)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := report.Render(cmd.OutOrStdout()); err != nil {
			return err
		}
		if report.Mismatch != nil {
			log.Warn("Simulated outcome differs from expectations", zap.String("script", path), zap.Error(report.Mismatch))
			failed = errors.Join(failed, fmt.Errorf("%s: expectations not met", path))
		}
		if submitter != nil {
			submitter.Handoff(report.Outcome)
		}
	}

	if submitter != nil {
		submitter.Wait()
	}
	return failed
}
