package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/database"
	"github.com/rzpsarthak13/gridconsole/internal/journal"
	"github.com/rzpsarthak13/gridconsole/internal/kvstore"
	"github.com/rzpsarthak13/gridconsole/internal/store"
	"github.com/rzpsarthak13/gridconsole/pkg/gridconsole"
)

const (
	historySourceDatabase = "database"
	historySourceKV       = "kv"
)

var (
	historyID      int64
	historyLimit   int
	historyDataset string
	historySource  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the journaled changes of one record",
	Long: `Reads the change log written by the database journal sink and prints the
changes of one record, newest first.

With --source kv the latest change of each field is read from the kv sink
instead.

Example:
  gridconsole history --id 4 --limit 10
  gridconsole history --id 4 --source kv`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	switch historySource {
	case historySourceDatabase:
	case historySourceKV:
		return runKVHistory(ctx, cmd.OutOrStdout())
	default:
		return fmt.Errorf("unknown history source %q (want %s or %s)", historySource, historySourceDatabase, historySourceKV)
	}

	changeLog, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open change log: %w", err)
	}
	defer func() {
		if err := changeLog.Close(); err != nil {
			logger.Warn("failed to close change log", zap.Error(err))
		}
	}()

	events, err := changeLog.History(ctx, historyDataset, historyID, historyLimit)
	if err != nil {
		return err
	}
	return printHistory(cmd.OutOrStdout(), historyID, events)
}

func runKVHistory(ctx context.Context, w io.Writer) error {
	kv, err := kvstore.Create(cfg.KVStore, logger)
	if err != nil {
		return fmt.Errorf("failed to create kvstore: %w", err)
	}
	sink := journal.NewKVSink(gridconsole.SinkKV, kv, journal.NewTranslator(cfg.Journal.KeyPrefix), 0)
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close kvstore", zap.Error(err))
		}
	}()

	events, err := kvHistory(ctx, sink, historyDataset, historyID, historyLimit)
	if err != nil {
		return err
	}
	return printHistory(w, historyID, events)
}

// kvHistory reads the latest change of every editable user field.
func kvHistory(ctx context.Context, sink *journal.KVSink, dataset string, id int64, limit int) ([]core.ChangeEvent, error) {
	var fields []string
	for _, f := range store.UsersSchema().Fields {
		if !f.ReadOnly {
			fields = append(fields, f.Name)
		}
	}
	events, err := sink.Latest(ctx, dataset, id, fields)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func printHistory(w io.Writer, id int64, events []core.ChangeEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintf(w, "No changes recorded for record %d\n", id)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tFIELD\tOLD\tNEW")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.At.UTC().Format(time.RFC3339),
			e.Field,
			core.FormatValue(e.OldValue),
			core.FormatValue(e.NewValue),
		)
	}
	return tw.Flush()
}
