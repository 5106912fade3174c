package retention

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"mercator-hq/daylog/pkg/clock"
	"mercator-hq/daylog/pkg/telemetry/metrics"
)

// SummaryFileName is the append-only record written to the year-parent
// directory after every prune that deleted something.
const SummaryFileName = "prune.txt"

// Year directory names must fall in this range.
const (
	minYear = 1900
	maxYear = 2999
)

// Config contains configuration for the Pruner.
type Config struct {
	// Policy resolves the retention age. Nil means DefaultRetentionDays for
	// every base path.
	Policy *Policy

	// Clock supplies "now". Nil means clock.System.
	Clock clock.Clock

	// Location is the time zone in which directory dates are interpreted.
	// Nil means time.Local.
	Location *time.Location

	// Metrics records prune results. May be nil.
	Metrics *metrics.Collector
}

// Expired is a day directory selected for deletion.
type Expired struct {
	Path    string
	AgeDays int
}

// Failure is a path that could not be deleted.
type Failure struct {
	Path   string
	Reason string
}

// Outcome describes a single Prune call.
type Outcome struct {
	// Dir is the path Prune was called with.
	Dir string

	// ScannedBase is the year-parent directory that was walked.
	ScannedBase string

	// MaxAgeDays is the retention age that was applied.
	MaxAgeDays int

	// Expired lists day directories older than MaxAgeDays.
	Expired []Expired

	// Deleted lists every directory removed, in removal order.
	Deleted []string

	// DeletedFiles lists every file removed, in removal order.
	DeletedFiles []string

	// Failures lists files and directories that could not be removed.
	Failures []Failure

	// Aborted holds the reason when no walk took place.
	Aborted string

	// Events are the lines appended to the summary record.
	Events []string

	// Started and Duration time the call.
	Started  time.Time
	Duration time.Duration
}

// Changed reports whether the prune deleted or tried to delete anything.
func (o *Outcome) Changed() bool {
	return len(o.Deleted) > 0 || len(o.DeletedFiles) > 0 || len(o.Failures) > 0
}

func (o *Outcome) addRemovals(removals []Removal) {
	for _, r := range removals {
		o.Events = append(o.Events, r.String())
		switch {
		case r.Err != nil:
			o.Failures = append(o.Failures, Failure{Path: r.Path, Reason: r.Err.Error()})
		case r.Dir:
			o.Deleted = append(o.Deleted, r.Path)
		default:
			o.DeletedFiles = append(o.DeletedFiles, r.Path)
		}
	}
}

// Pruner deletes day directories that have outlived their retention age.
type Pruner struct {
	config Config
	logger *slog.Logger
}

// NewPruner creates a new Pruner.
func NewPruner(cfg Config) *Pruner {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Pruner{
		config: cfg,
		logger: slog.Default().With("component", "retention"),
	}
}

// Policy returns the retention policy in use.
func (p *Pruner) Policy() *Policy {
	return p.config.Policy
}

// PruneBase prunes the hierarchy under a base path, i.e. the directory that
// directly contains the year directories.
func (p *Pruner) PruneBase(ctx context.Context, base string) (*Outcome, error) {
	now := p.config.Clock.Now().In(p.config.Location)
	day := filepath.Join(base, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), fmt.Sprintf("%02d", now.Day()))
	return p.Prune(ctx, day)
}

// Prune walks the year/month/day hierarchy that dir belongs to and deletes
// every day directory older than the retention age, followed by month and
// year directories left without subdirectories.
//
// dir is normally a directory returned by the allocator, such as
// /data/log/2021/06/01/ or /data/log/2021/06/01/3/. The year-parent
// (/data/log) is found by looking for the lowest path segment that is a
// four-digit year with at least two segments below it. If there is none,
// Prune returns ErrYearDirNotFound without touching the filesystem.
//
// Individual deletion failures are recorded in the Outcome and never stop
// the walk. Nothing at or above the year-parent is ever deleted. The only
// error returned besides ErrYearDirNotFound is ctx.Err().
func (p *Pruner) Prune(ctx context.Context, dir string) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{Dir: dir, Started: start}

	yearParent, ok := YearParent(dir)
	if !ok {
		outcome.Aborted = fmt.Sprintf("%s in %s", ErrYearDirNotFound.Error(), dir)
		p.logger.Warn("prune aborted", "dir", dir, "reason", outcome.Aborted)
		outcome.Duration = time.Since(start)
		p.config.Metrics.RecordPrune("", 0, 0, 0, 0, true, outcome.Duration)
		return outcome, fmt.Errorf("%w in %s", ErrYearDirNotFound, dir)
	}

	outcome.ScannedBase = yearParent
	outcome.MaxAgeDays = p.config.Policy.ResolveMaxAgeDays(yearParent)
	now := p.config.Clock.Now().In(p.config.Location)

	p.logger.Debug("pruning log directories",
		"year_parent", yearParent,
		"max_age_days", outcome.MaxAgeDays,
	)

	var walkErr error
	for _, year := range listDirs(yearParent) {
		if err := ctx.Err(); err != nil {
			walkErr = err
			break
		}
		y, ok := parseYear(year)
		if !ok {
			continue
		}
		yearDir := filepath.Join(yearParent, year)

		for _, month := range listDirs(yearDir) {
			m, ok := parseMonth(month)
			if !ok {
				continue
			}
			monthDir := filepath.Join(yearDir, month)

			for _, day := range listDirs(monthDir) {
				date, ok := parseDate(y, m, day, p.config.Location)
				if !ok {
					continue
				}
				age := ageDays(now, date)
				if age <= outcome.MaxAgeDays {
					continue
				}

				dayDir := filepath.Join(monthDir, day)
				outcome.Expired = append(outcome.Expired, Expired{Path: dayDir, AgeDays: age})
				outcome.Events = append(outcome.Events, fmt.Sprintf("%s is %d days old; greater than %d days...deleting", dayDir, age, outcome.MaxAgeDays))
				outcome.addRemovals(RemoveTree(yearParent, dayDir))
			}

			if len(listDirs(monthDir)) == 0 {
				outcome.addRemovals(RemoveTree(yearParent, monthDir))
			}
		}

		if len(listDirs(yearDir)) == 0 {
			outcome.addRemovals(RemoveTree(yearParent, yearDir))
		}
	}

	if len(outcome.Events) > 0 {
		if err := p.writeSummary(yearParent, outcome); err != nil {
			p.logger.Warn("failed to write prune summary", "year_parent", yearParent, "error", err)
		}
	}

	outcome.Duration = time.Since(start)
	p.config.Metrics.RecordPrune(yearParent, len(outcome.Expired), len(outcome.Deleted), len(outcome.DeletedFiles), len(outcome.Failures), false, outcome.Duration)

	if outcome.Changed() {
		p.logger.Info("log directories pruned",
			"year_parent", yearParent,
			"expired", len(outcome.Expired),
			"deleted_dirs", len(outcome.Deleted),
			"deleted_files", len(outcome.DeletedFiles),
			"failures", len(outcome.Failures),
			"max_age_days", outcome.MaxAgeDays,
		)
	}

	return outcome, walkErr
}

func (p *Pruner) writeSummary(yearParent string, outcome *Outcome) error {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(clock.Stamp(p.config.Clock.Now().In(p.config.Location)))
	for _, line := range outcome.Events {
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	sb.WriteString("\n")

	f, err := os.OpenFile(filepath.Join(yearParent, SummaryFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// YearParent returns the directory above the year directory in path. The
// year directory is the lowest segment naming a year that still has at
// least two segments (month and day) below it. A year-parent equal to the
// filesystem root is rejected.
func YearParent(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	sep := string(filepath.Separator)
	segments := strings.Split(filepath.Clean(path), sep)

	for i := len(segments) - 3; i >= 0; i-- {
		if _, ok := parseYear(segments[i]); !ok {
			continue
		}
		parent := strings.Join(segments[:i], sep)
		switch {
		case i == 0:
			parent = "."
		case parent == "":
			return "", false
		}
		return parent, true
	}
	return "", false
}

// ageDays is the number of whole days between date and now.
func ageDays(now, date time.Time) int {
	return int(math.Floor(now.Sub(date).Hours() / 24))
}

// parseDate accepts only names that round-trip to the same calendar date,
// so 2021/02/30 or 2021/06/x are rejected.
func parseDate(year, month int, dayName string, loc *time.Location) (time.Time, bool) {
	d, ok := parseBounded(dayName, 2, 1, 31)
	if !ok {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), d, 0, 0, 0, 0, loc)
	if date.Year() != year || int(date.Month()) != month || date.Day() != d {
		return time.Time{}, false
	}
	return date, true
}

func parseYear(name string) (int, bool) {
	if len(name) != 4 {
		return 0, false
	}
	return parseBounded(name, 4, minYear, maxYear)
}

func parseMonth(name string) (int, bool) {
	return parseBounded(name, 2, 1, 12)
}

// parseBounded parses 1..maxLen ASCII digits into a value within [lo, hi].
func parseBounded(s string, maxLen, lo, hi int) (int, bool) {
	if s == "" || len(s) > maxLen {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// listDirs returns the sorted names of the real (non-symlink) directories
// directly inside dir.
func listDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}
