package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/pkg/gridconsole"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the record store over HTTP",
	Long: `Seeds the record store and serves it on server.addr:

  GET   /api/demo/tables         one page of records
  PATCH /api/demo/tables         write one cell
  GET   /api/demo/tables/schema  field layout
  GET   /health                  liveness and journal state

Writes are journaled to the configured sinks when journal.enabled is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *gridconsole.Config, logger *zap.Logger) error {
	svc, err := gridconsole.NewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close service", zap.Error(err))
		}
	}()

	logger.Info("serving", zap.String("addr", cfg.Server.Addr))
	return svc.Run(ctx)
}
