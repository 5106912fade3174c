package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/daylog/pkg/cli"
	"mercator-hq/daylog/pkg/retention"
)

var pruneFlags struct {
	all    bool
	format string
}

var pruneCmd = &cobra.Command{
	Use:   "prune [DIR...]",
	Short: "Delete day directories older than their retention age",
	Long: `Prune the year/month/day hierarchy each DIR belongs to. DIR is usually a
directory produced by "daylog alloc", e.g. /data/log/2021/06/11/; the
hierarchy root is the directory containing the year directory.

With --all, every base listed in retention.bases is pruned instead.

Day directories older than the retention age are deleted together with their
contents; month and year directories left empty are removed. Nothing at or
above the hierarchy root is ever deleted. A path without a year directory is
rejected without touching the filesystem.

Examples:
  # Prune the hierarchy of one allocated directory
  daylog prune /data/log/2021/06/11/

  # Prune every configured base and print JSON
  daylog prune --all --format json`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneFlags.all, "all", false, "prune every base in retention.bases")
	pruneCmd.Flags().StringVarP(&pruneFlags.format, "format", "f", "text", "output format (text, json, csv)")
}

// pruneResult is the printed form of a retention.Outcome.
type pruneResult struct {
	Dir          string              `json:"dir"`
	ScannedBase  string              `json:"scanned_base,omitempty"`
	MaxAgeDays   int                 `json:"max_age_days,omitempty"`
	Expired      []retention.Expired `json:"expired,omitempty"`
	Deleted      []string            `json:"deleted,omitempty"`
	DeletedFiles []string            `json:"deleted_files,omitempty"`
	Failures     []retention.Failure `json:"failures,omitempty"`
	Aborted      string              `json:"aborted,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func newPruneResult(o *retention.Outcome, err error) pruneResult {
	r := pruneResult{
		Dir:          o.Dir,
		ScannedBase:  o.ScannedBase,
		MaxAgeDays:   o.MaxAgeDays,
		Expired:      o.Expired,
		Deleted:      o.Deleted,
		DeletedFiles: o.DeletedFiles,
		Failures:     o.Failures,
		Aborted:      o.Aborted,
	}
	if err != nil && o.Aborted == "" {
		r.Error = err.Error()
	}
	return r
}

func (r pruneResult) status() string {
	switch {
	case r.Aborted != "":
		return "aborted"
	case r.Error != "":
		return "interrupted"
	case len(r.Failures) > 0:
		return "partial"
	default:
		return "ok"
	}
}

// pruneReport is the output of one prune command.
type pruneReport []pruneResult

func (p pruneReport) Header() []string {
	return []string{"DIR", "BASE", "MAX_AGE", "EXPIRED", "DIRS", "FILES", "FAILURES", "STATUS"}
}

func (p pruneReport) Rows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, r := range p {
		rows = append(rows, []string{
			r.Dir,
			r.ScannedBase,
			strconv.Itoa(r.MaxAgeDays),
			strconv.Itoa(len(r.Expired)),
			strconv.Itoa(len(r.Deleted)),
			strconv.Itoa(len(r.DeletedFiles)),
			strconv.Itoa(len(r.Failures)),
			r.status(),
		})
	}
	return rows
}

func runPrune(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(pruneFlags.format)
	if err != nil {
		return err
	}
	if pruneFlags.all && len(args) > 0 {
		return cli.NewConfigError("--all", "cannot be combined with DIR arguments")
	}
	if !pruneFlags.all && len(args) == 0 {
		return cli.NewConfigError("DIR", "a directory argument or --all is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pruneFlags.all && len(cfg.Retention.Bases) == 0 {
		return cli.NewConfigError("retention.bases", "no bases configured for --all")
	}

	a, err := newApp(cfg)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer a.Close()

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	var progress cli.ProgressReporter
	if pruneFlags.all && format == cli.FormatText {
		progress = cli.NewProgressReporter(stderr(cmd))
		progress.Start(len(cfg.Retention.Bases))
	}

	targets := args
	if pruneFlags.all {
		targets = cfg.Retention.Bases
	}

	var report pruneReport
	var problems int
	for _, target := range targets {
		var outcome *retention.Outcome
		if pruneFlags.all {
			outcome, err = a.pruner.PruneBase(ctx, target)
		} else {
			outcome, err = a.pruner.Prune(ctx, target)
		}
		a.recordPrune(ctx, outcome)

		result := newPruneResult(outcome, err)
		report = append(report, result)
		if result.status() != "ok" {
			problems++
		}
		if progress != nil {
			progress.Step(target)
		}
		if errors.Is(err, context.Canceled) {
			break
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if err := cli.NewFormatter(format).FormatTo(stdout(cmd), report); err != nil {
		return err
	}
	if problems > 0 {
		return cli.NewCommandError("prune", fmt.Errorf("%d of %d prunes did not complete cleanly", problems, len(report)))
	}
	return nil
}
