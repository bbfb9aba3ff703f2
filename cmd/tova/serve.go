package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tova-go/internal/config"
	"tova-go/internal/database"
	"tova-go/internal/repository"
	"tova-go/internal/router"
	"tova-go/internal/services"
	"tova-go/internal/sink"
)

var serveFlags struct {
	accessLimit uint
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the results API",
	Long: `Connects to postgres, runs migrations and serves the access check,
result submission, result lookup and reaction-time chart endpoints.

Results left in sink.pending_dir on this host are written straight to the
database in the background.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	serveCmd.Flags().UintVar(&serveFlags.accessLimit, "access-limit", 5, "access checks and result saves per client per minute")
}

func serve(cmd *cobra.Command, _ []string) error {
	conf := config.Current()

	db, err := database.Open(conf.Database, log)
	if err != nil {
		return err
	}
	results := repository.NewResults(db)

	r := router.Setup(log, router.Deps{
		Results:     results,
		Payments:    repository.NewPayments(db),
		Mailer:      services.NewEmailService(log, os.Stdout),
		AccessLimit: serveFlags.accessLimit,
	})
	srv := &http.Server{
		Addr:              ":" + conf.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	pending := sink.NewPendingStore(resolve(conf.Sink.PendingDir))
	local := sink.NewSubmitter(sink.NewRepository(results), pending, conf.Sink.Timeout(), log)
	retry := services.NewRetryScheduler(log, local, conf.Sink.RetryInterval())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening on http://localhost" + srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return retry.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	return nil
}
