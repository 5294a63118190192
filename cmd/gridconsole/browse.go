package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/grid"
	"github.com/rzpsarthak13/gridconsole/internal/logging"
	"github.com/rzpsarthak13/gridconsole/internal/remote"
	"github.com/rzpsarthak13/gridconsole/internal/store"
	"github.com/rzpsarthak13/gridconsole/internal/tui"
	"github.com/rzpsarthak13/gridconsole/pkg/gridconsole"
)

var (
	browseLocal bool
	browseURL   string
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse records in the terminal data grid",
	Long: `Opens the full-screen data grid against a gridconsole server, or against
an in-process seeded store with --local.

Keys: arrows or hjkl move, enter or e edits, / filters, s sorts,
[ ] change page, { } jump to the first or last page, p cycles the page
size, r reloads, q quits. Drag a header border with the mouse to resize
a column; double-click a cell to edit it.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Log lines on stderr would tear the grid.
	tuiLogger, err := clientLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = tuiLogger.Sync() }()

	source, err := dataSource(cfg, tuiLogger)
	if err != nil {
		return err
	}

	g := grid.New(source,
		grid.WithLogger(tuiLogger),
		grid.WithPageSize(cfg.Client.PageSize),
		grid.WithColumns(columnsFor(ctx, source, tuiLogger)),
	)
	return tui.Run(ctx, g, tui.WithLogger(tuiLogger))
}

func clientLogger(cfg *gridconsole.Config) (*zap.Logger, error) {
	if cfg.Client.LogFile == "" {
		return zap.NewNop(), nil
	}
	lc := cfg.Logging
	lc.OutputPaths = []string{cfg.Client.LogFile}
	return logging.New(lc, verbose)
}

func dataSource(cfg *gridconsole.Config, logger *zap.Logger) (core.DataSource, error) {
	if browseLocal {
		s, err := store.NewSeeded(cfg.Store.SeedSize, store.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
		return s, nil
	}

	baseURL := cfg.Client.BaseURL
	if browseURL != "" {
		baseURL = browseURL
	}
	client, err := remote.New(baseURL,
		remote.WithTimeout(cfg.Client.Timeout),
		remote.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// columnsFor asks source for its schema and falls back to the built-in user
// columns when it cannot describe itself.
func columnsFor(ctx context.Context, source core.DataSource, logger *zap.Logger) []grid.Column {
	ss, ok := source.(core.SchemaSource)
	if !ok {
		return grid.UserColumns()
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := ss.Schema(ctx)
	if err != nil {
		logger.Warn("failed to load schema, using default columns", zap.Error(err))
		return grid.UserColumns()
	}
	if cols := grid.ColumnsFromSchema(s); len(cols) > 0 {
		return cols
	}
	return grid.UserColumns()
}
