package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/daylog/pkg/cli"
	"mercator-hq/daylog/pkg/history"
)

var historyFlags struct {
	limit  int
	prunes bool
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent allocations or prune runs",
	Long: `List rows from the history ledger, newest first. The ledger must be
enabled with history.enabled; it records where each session's log file was
placed and what every prune deleted.

Examples:
  # Last 20 allocations
  daylog history --limit 20

  # Prune runs as JSON
  daylog history --prunes --format json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 50, "maximum number of rows")
	historyCmd.Flags().BoolVar(&historyFlags.prunes, "prunes", false, "list prune runs instead of allocations")
	historyCmd.Flags().StringVarP(&historyFlags.format, "format", "f", "text", "output format (text, json, csv)")
}

// allocationTable renders ledger allocations.
type allocationTable []history.Allocation

func (t allocationTable) Header() []string {
	return []string{"TIME", "CALLER", "BASE", "PATH", "FALLBACK", "FATAL", "SEQ"}
}

func (t allocationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, a := range t {
		rows = append(rows, []string{
			a.CreatedAt.Format(time.RFC3339),
			a.Caller,
			a.BasePath,
			a.Dir + a.FileName,
			strconv.FormatBool(a.UsedFallback),
			strconv.FormatBool(a.Fatal),
			strconv.FormatBool(a.Sequence),
		})
	}
	return rows
}

// pruneRunTable renders ledger prune runs.
type pruneRunTable []history.PruneRun

func (t pruneRunTable) Header() []string {
	return []string{"TIME", "BASE", "MAX_AGE", "EXPIRED", "DIRS", "FILES", "FAILURES", "DURATION", "ABORTED"}
}

func (t pruneRunTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.StartedAt.Format(time.RFC3339),
			r.ScannedBase,
			strconv.Itoa(r.MaxAgeDays),
			strconv.Itoa(r.Expired),
			strconv.Itoa(r.DeletedDirs),
			strconv.Itoa(r.DeletedFiles),
			strconv.Itoa(r.Failures),
			r.Duration.Round(time.Millisecond).String(),
			r.Aborted,
		})
	}
	return rows
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(historyFlags.format)
	if err != nil {
		return err
	}
	if historyFlags.limit < 0 {
		return cli.NewConfigError("--limit", "must not be negative")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return cli.NewConfigError("history.enabled", "the history ledger is disabled")
	}

	store, err := history.Open(history.Config{
		Driver: cfg.History.Driver,
		Path:   cfg.History.Path,
	})
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer store.Close()

	ctx := context.Background()
	formatter := cli.NewFormatter(format)

	if historyFlags.prunes {
		runs, err := store.ListPruneRuns(ctx, historyFlags.limit)
		if err != nil {
			return cli.NewCommandError("history", err)
		}
		if runs == nil {
			runs = []history.PruneRun{}
		}
		return formatter.FormatTo(stdout(cmd), pruneRunTable(runs))
	}

	allocations, err := store.ListAllocations(ctx, historyFlags.limit)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	if allocations == nil {
		allocations = []history.Allocation{}
	}
	return formatter.FormatTo(stdout(cmd), allocationTable(allocations))
}
