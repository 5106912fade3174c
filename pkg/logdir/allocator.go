package logdir

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mercator-hq/daylog/pkg/audit"
	"mercator-hq/daylog/pkg/clock"
	"mercator-hq/daylog/pkg/telemetry/metrics"
)

// DirMode is applied to every directory segment the allocator creates.
const DirMode fs.FileMode = 0o777

// maxClaimAttempts bounds the exclusive sequence claim loop.
const maxClaimAttempts = 1000

// MaxSequence is the largest directory name NextSequence treats as a
// sequence number. Larger numeric names are ignored.
const MaxSequence = 1<<31 - 1

const sep = string(filepath.Separator)

// Request describes one allocation.
type Request struct {
	// BasePath is the caller's log root. Required.
	BasePath string

	// AddSequenceSubdir claims the next numbered directory beneath the day
	// directory.
	AddSequenceSubdir bool

	// Timestamp selects the day directory and the file name. Zero means now.
	Timestamp time.Time

	// Caller and SessionID only annotate the audit entry.
	Caller    string
	SessionID string
}

// Location is the result of an allocation.
type Location struct {
	// Dir is the resolved directory, always ending in a separator.
	Dir string

	// FileName is the session's log file name within Dir.
	FileName string

	// UsedFallback is set when the orphan directory replaced the request.
	UsedFallback bool

	// Timestamp is the instant the location was derived from.
	Timestamp time.Time

	// Notes are human-readable progress lines for the session log.
	Notes []string

	// Errors holds every condition the allocator recovered from.
	Errors []error
}

// Path returns the full log file path.
func (l Location) Path() string {
	return l.Dir + l.FileName
}

// Fatal reports whether no usable directory could be created.
func (l Location) Fatal() bool {
	return l.FatalError() != nil
}

// FatalError returns the error marked with ErrFatalCondition, if any.
func (l Location) FatalError() error {
	for _, err := range l.Errors {
		if errors.Is(err, ErrFatalCondition) {
			return err
		}
	}
	return nil
}

// Config contains configuration for the Allocator.
type Config struct {
	// OrphanDir is the fallback base directory.
	OrphanDir string

	// ExclusiveSequence claims sequence directories with an exclusive mkdir.
	ExclusiveSequence bool

	// Location is the time zone used to derive year/month/day. Nil means
	// time.Local.
	Location *time.Location

	// Clock supplies the timestamp when a Request has none.
	Clock clock.Clock

	// Audit receives one entry per allocation. May be nil.
	Audit *audit.Log

	// Metrics counts allocations by outcome. May be nil.
	Metrics *metrics.Collector
}

// Allocator resolves and creates dated log directories.
type Allocator struct {
	config Config
	logger *slog.Logger
}

// NewAllocator creates a new Allocator.
func NewAllocator(cfg Config) *Allocator {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.OrphanDir == "" {
		cfg.OrphanDir = DefaultOrphanDir()
	}
	return &Allocator{
		config: cfg,
		logger: slog.Default().With("component", "logdir"),
	}
}

// DefaultOrphanDir returns the orphan directory used when none is configured.
func DefaultOrphanDir() string {
	return filepath.Join(os.TempDir(), "daylog", "orphanLog") + sep
}

// OrphanDir returns the configured fallback directory.
func (a *Allocator) OrphanDir() string {
	return withTrailingSep(a.config.OrphanDir)
}

// Allocate validates the request, builds the dated path and creates it.
// It never fails outright: problems are recorded on the returned Location
// and in the audit record, and the orphan directory is used instead.
func (a *Allocator) Allocate(req Request) Location {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = a.config.Clock.Now()
	}
	ts = ts.In(a.config.Location)

	loc := Location{
		FileName:  clock.Stamp(ts) + ".txt",
		Timestamp: ts,
	}

	var auditMsg strings.Builder
	if req.Caller != "" {
		fmt.Fprintf(&auditMsg, "Calling File: %s; ", req.Caller)
	}

	base, err := a.validate(req.BasePath, &loc)
	if err != nil {
		loc.Errors = append(loc.Errors, err)
		loc.UsedFallback = true
		fmt.Fprintf(&auditMsg, "%s; Using orphan log: %s", auditReason(err), a.OrphanDir())
		a.logger.Warn("log directory request rejected, using orphan directory",
			"base_path", req.BasePath,
			"orphan_dir", a.OrphanDir(),
			"error", err,
		)
		base = a.OrphanDir()
	} else {
		fmt.Fprintf(&auditMsg, "Required parameter, logDir: %s", req.BasePath)
	}

	dir, err := a.create(base, ts, req.AddSequenceSubdir, &loc)
	if err != nil && base != a.OrphanDir() {
		loc.Errors = append(loc.Errors, err)
		loc.UsedFallback = true
		a.logger.Warn("failed to create log directory, retrying under orphan directory",
			"dir", dir,
			"error", err,
		)
		fmt.Fprintf(&auditMsg, "; Failed to create log directory: %s; Using orphan log: %s", dir, a.OrphanDir())
		dir, err = a.create(a.OrphanDir(), ts, req.AddSequenceSubdir, &loc)
	}
	if err != nil {
		loc.Errors = append(loc.Errors, err, fmt.Errorf("%w: %s", ErrFatalCondition, dir))
		loc.UsedFallback = true
		fmt.Fprintf(&auditMsg, "; Can't create the orphan log directory %s", dir)
		a.logger.Error("log directory unavailable", "dir", dir, "error", err)
	}

	loc.Dir = dir
	if err := a.config.Audit.Record(req.SessionID, auditMsg.String()); err != nil {
		loc.Errors = append(loc.Errors, err)
	}
	a.config.Metrics.RecordAllocation(loc.UsedFallback, loc.Fatal(), req.AddSequenceSubdir)

	return loc
}

// validate checks that base is set and that its first three path segments
// exist, returning base with a trailing separator.
func (a *Allocator) validate(base string, loc *Location) (string, error) {
	if base == "" {
		loc.Notes = append(loc.Notes, "Log directory parameter was not passed")
		return "", NewConfigurationError("", "Missing required parameter: logDir")
	}
	loc.Notes = append(loc.Notes, "Log directory parameter was passed: "+base)

	if !strings.HasSuffix(base, sep) {
		base += sep
		loc.Notes = append(loc.Notes, "Adding trailing slash to log directory: "+base)
	}

	parent := grandparent(base)
	if _, err := os.Stat(parent); err != nil {
		loc.Notes = append(loc.Notes, "Parent directory does not exist: "+parent)
		return "", NewConfigurationError(base, "Parent directory does not exist: "+parent)
	}
	loc.Notes = append(loc.Notes, "Parent directory exists: "+parent)

	return base, nil
}

// create appends the dated segments (and the sequence number when asked)
// to base and creates the result. The returned path is meaningful even on
// error.
func (a *Allocator) create(base string, ts time.Time, sequence bool, loc *Location) (string, error) {
	day := DayDir(base, ts)

	if !sequence {
		return day, a.mkdir(day, loc)
	}

	if a.config.ExclusiveSequence {
		return a.claimExclusive(day, loc)
	}

	dir := day + strconv.Itoa(NextSequence(day)) + sep
	return dir, a.mkdir(dir, loc)
}

// claimExclusive creates the day directory and then the first sequence
// number above the current maximum that nobody else has created yet.
func (a *Allocator) claimExclusive(day string, loc *Location) (string, error) {
	if err := a.mkdir(day, loc); err != nil {
		return day, err
	}

	n := NextSequence(day)
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		dir := day + strconv.Itoa(n) + sep
		err := os.Mkdir(dir, DirMode)
		if err == nil {
			_ = os.Chmod(dir, DirMode)
			loc.Notes = append(loc.Notes, fmt.Sprintf("Created log directory %s with permission %o", dir, DirMode))
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return dir, NewDirectoryCreationError(dir, err)
		}
		a.logger.Debug("sequence directory already claimed", "dir", dir)
		n++
	}

	dir := day + strconv.Itoa(n) + sep
	return dir, NewDirectoryCreationError(dir, fmt.Errorf("no free sequence number after %d attempts", maxClaimAttempts))
}

// mkdir creates dir and every missing parent with DirMode, independent of
// the process umask.
func (a *Allocator) mkdir(dir string, loc *Location) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return NewDirectoryCreationError(dir, fmt.Errorf("%s exists and is not a directory", dir))
		}
		return nil
	}

	loc.Notes = append(loc.Notes, "Log directory does not exist: "+dir)
	missing := missingSegments(dir)

	if err := os.MkdirAll(dir, DirMode); err != nil {
		loc.Notes = append(loc.Notes, "Failed to create log directory: "+dir)
		return NewDirectoryCreationError(dir, err)
	}
	for _, seg := range missing {
		_ = os.Chmod(seg, DirMode)
	}

	loc.Notes = append(loc.Notes, fmt.Sprintf("Created log directory %s with permission %o", dir, DirMode))
	a.logger.Debug("created log directory", "dir", dir)
	return nil
}

// DayDir appends the four-digit year, two-digit month and two-digit day of
// ts to base.
func DayDir(base string, ts time.Time) string {
	return withTrailingSep(base) + fmt.Sprintf("%04d%s%02d%s%02d%s", ts.Year(), sep, int(ts.Month()), sep, ts.Day(), sep)
}

// NextSequence returns one more than the largest numeric subdirectory name
// of dir below MaxSequence, or 1 if there is none. Unreadable or missing
// directories count as empty.
func NextSequence(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}

	highest := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, ok := parseUnsigned(entry.Name())
		if ok && n < MaxSequence && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// parseUnsigned accepts only ASCII digits.
func parseUnsigned(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// grandparent returns the first three separator-delimited segments of p,
// e.g. "/pix/anro" for "/pix/anro/edi/log/".
func grandparent(p string) string {
	parts := strings.Split(p, sep)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	joined := strings.Join(parts, sep)
	if joined == "" {
		return sep
	}
	return joined
}

// missingSegments lists the ancestors of dir (dir included) that do not
// exist yet, outermost first.
func missingSegments(dir string) []string {
	var missing []string
	for p := filepath.Clean(dir); ; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		missing = append([]string{p}, missing...)
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return missing
}

func withTrailingSep(p string) string {
	if strings.HasSuffix(p, sep) {
		return p
	}
	return p + sep
}

func auditReason(err error) string {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Reason
	}
	return err.Error()
}
