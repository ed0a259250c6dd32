package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rostersync/rostersync/internal/intake"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the batch upload intake endpoint",
		Long: `Start the HTTP intake server. POST /batch accepts a multipart upload of
extract files (parts named after the per-kind filenames without extension),
policy override fields, and runJob=true to trigger a synchronization once
the upload lands. GET /status reports the current run state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	a, err := loadApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	srv := intake.New(a.cfg.UploadDir, a.cfg.Intake.Token, a.engine, a.log)
	httpSrv := &http.Server{
		Addr:              a.cfg.Intake.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.log.Info("received signal, shutting down", "signal", sig)
		case <-ctx.Done():
		}
		if a.engine.Running() {
			a.log.Info("requesting stop of in-flight run")
		}
		a.engine.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("shutdown error", "error", err)
		}
	}()

	a.log.Info("intake listening", "addr", a.cfg.Intake.Addr, "uploadDir", a.cfg.UploadDir)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "intake server failed", err)
	}
	return nil
}
