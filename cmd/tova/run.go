package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tova-go/internal/clock"
	"tova-go/internal/config"
	"tova-go/internal/engine"
	"tova-go/internal/models"
	"tova-go/internal/services"
	"tova-go/internal/sink"
	"tova-go/internal/terminal"
	"tova-go/internal/utils"
)

var runFlags struct {
	email       string
	paymentCode string
	name        string
	seed        int64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Take the test in this terminal",
	Long: `Verifies the participant's payment code with the results API (when
sink.url is configured), shows the briefing and runs one test session.

The result is submitted when the session ends. Results that cannot be
delivered are kept under sink.pending_dir and retried later.`,
	Args: cobra.NoArgs,
	RunE: runTest,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.email, "email", "", "participant email")
	runCmd.Flags().StringVar(&runFlags.paymentCode, "payment-code", "", "payment code issued at registration")
	runCmd.Flags().StringVar(&runFlags.name, "name", "", "participant name shown on screen")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "stimulus sequence seed (0 uses test.seed or the clock)")
	_ = runCmd.MarkFlagRequired("email")
	_ = runCmd.MarkFlagRequired("payment-code")
}

func runTest(cmd *cobra.Command, _ []string) error {
	conf := config.Current()
	cfg := conf.Test.Engine()

	participant := models.Participant{
		Email:       runFlags.email,
		PaymentCode: utils.NormalizePaymentCode(runFlags.paymentCode),
		Name:        runFlags.name,
	}
	if !utils.IsValidEmail(participant.Email) {
		return fmt.Errorf("invalid email %q", participant.Email)
	}
	if !utils.IsValidPaymentCode(participant.PaymentCode) {
		return fmt.Errorf("invalid payment code %q", participant.PaymentCode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resultSink sink.Sink
	if conf.Sink.URL != "" {
		api := sink.NewHTTP(conf.Sink.URL, conf.Sink.Timeout())
		verified, err := api.VerifyAccess(ctx, participant)
		if err != nil {
			return fmt.Errorf("access check failed: %w", err)
		}
		if participant.Name != "" && verified.Name == "" {
			verified.Name = participant.Name
		}
		participant = verified
		resultSink = api
	} else {
		log.Warn("No sink.url configured; the result will be kept pending")
	}

	pending := sink.NewPendingStore(resolve(conf.Sink.PendingDir))
	submitter := sink.NewSubmitter(resultSink, pending, conf.Sink.Timeout(), log)
	screen := terminal.NewScreen()
	submitter.OnState = screen.SubmissionChanged

	seed := runFlags.seed
	if seed == 0 {
		seed = conf.Test.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	loop := clock.NewLoop()
	session, err := engine.NewSession(cfg, engine.Options{
		Scheduler:  loop,
		Display:    screen,
		Observer:   screen,
		OnComplete: submitter.Handoff,
		Logger:     log,
		Seed:       seed,
	})
	if err != nil {
		return err
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		if err := loop.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	retry := services.NewRetryScheduler(log, submitter, conf.Sink.RetryInterval())
	g.Go(func() error { return retry.Run(gctx) })

	if err := session.Authorize(participant); err != nil {
		cancelLoop()
		_ = g.Wait()
		return err
	}
	log.Info("Session authorized",
		zap.String("session", session.ID()),
		zap.String("payment_code", participant.PaymentCode),
		zap.Int64("seed", seed))

	prog := tea.NewProgram(terminal.NewModel(session, participant, cfg), tea.WithAltScreen())
	screen.Attach(prog)
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()
	_, runErr := prog.Run()

	if session.Status().Phase == engine.PhaseRunning {
		if err := session.Stop(); err != nil && !errors.Is(err, engine.ErrInvalidTransition) {
			log.Error("Failed to stop session", zap.Error(err))
		}
	}
	submitter.Wait()
	cancelLoop()
	if err := g.Wait(); err != nil {
		log.Error("Background task failed", zap.Error(err))
	}

	if runErr != nil {
		return fmt.Errorf("terminal UI: %w", runErr)
	}
	if o, ok := session.Outcome(); ok {
		st, _ := submitter.State(o.SessionID)
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended (%s); result %s.\n", o.SessionID, o.Reason, st)
	}
	return nil
}

// resolve anchors relative paths at the project root.
func resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}
