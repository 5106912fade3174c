package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/daylog/pkg/audit"
	"mercator-hq/daylog/pkg/clock"
	"mercator-hq/daylog/pkg/config"
	"mercator-hq/daylog/pkg/history"
	"mercator-hq/daylog/pkg/logdir"
	"mercator-hq/daylog/pkg/retention"
	"mercator-hq/daylog/pkg/telemetry/metrics"
)

var testStart = time.Date(2021, 6, 11, 12, 0, 0, 0, time.UTC)

type fixture struct {
	root      string
	base      string
	orphan    string
	auditPath string
	clock     *clock.Fixed
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:      root,
		base:      filepath.Join(root, "edi", "log") + string(filepath.Separator),
		orphan:    filepath.Join(root, "orphanLog") + string(filepath.Separator),
		auditPath: filepath.Join(root, "LoggerLog.txt"),
		clock:     clock.NewFixed(testStart),
	}
	f.deps = Deps{
		Allocator: logdir.NewAllocator(logdir.Config{
			OrphanDir: f.orphan,
			Location:  time.UTC,
			Clock:     f.clock,
			Audit:     audit.New(audit.Config{Path: f.auditPath, Clock: f.clock, Location: time.UTC}),
		}),
		Clock: f.clock,
	}
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

type fakeLedger struct {
	mu          sync.Mutex
	allocations []history.Allocation
	prunes      []history.PruneRun
	err         error
}

func (l *fakeLedger) RecordAllocation(_ context.Context, a history.Allocation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allocations = append(l.allocations, a)
	return l.err
}

func (l *fakeLedger) RecordPrune(_ context.Context, r history.PruneRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prunes = append(l.prunes, r)
	return l.err
}

func TestOpen_StartAndCloseLines(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{
		BasePath:  f.base,
		Caller:    "dat_connexion",
		User:      "tester",
		SkipPrune: true,
	}, f.deps)

	wantDir := f.base + filepath.FromSlash("2021/06/11/")
	if s.Location().Dir != wantDir {
		t.Fatalf("Dir = %q, want %q", s.Location().Dir, wantDir)
	}
	if s.Location().FileName != "0611120000000000.txt" {
		t.Errorf("FileName = %q", s.Location().FileName)
	}

	s.Log(1, "hello")
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("Expected nothing flushed before Close, stat err = %v", err)
	}

	f.clock.Advance(90 * time.Second)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content := readFile(t, s.Path())
	wantParts := []string{
		"0611120000000000\n",
		"\n0\t\tStarting log entry called by dat_connexion",
		"\n0\t\tUser: tester",
		"\n0\t\thello",
		"\t\tClosing log entry to " + s.Path(),
		"\n90000000\t\tTotal elapsed time",
		"\n00days 00hrs 01mins 30secs\t\tTotal elapsed time",
	}
	for _, part := range wantParts {
		if !strings.Contains(content, part) {
			t.Errorf("log missing %q:\n%s", part, content)
		}
	}
	if !strings.HasPrefix(content, "0611120000000000") {
		t.Errorf("log should start with the session stamp:\n%s", content)
	}
	if !strings.HasSuffix(content, "\n0611120130000000") {
		t.Errorf("log should end with the close stamp:\n%s", content)
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != FileMode {
		t.Errorf("file mode = %v, want %v", info.Mode().Perm(), FileMode)
	}
}

func TestOpen_StampsFollowAllocatorLocation(t *testing.T) {
	f := newFixture(t)
	est := time.FixedZone("EST", -5*3600)
	f.clock.Set(testStart.In(est))

	s := Open(context.Background(), Config{
		BasePath:  f.base,
		Caller:    "dat_connexion",
		User:      "tester",
		SkipPrune: true,
	}, f.deps)
	f.clock.Advance(time.Second)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	stem := strings.TrimSuffix(s.Location().FileName, ".txt")
	if stem != "0611120000000000" {
		t.Fatalf("FileName = %q, want UTC stamp", s.Location().FileName)
	}
	content := readFile(t, s.Path())
	if !strings.HasPrefix(content, stem+"\n") {
		t.Errorf("header stamp should match the file name %s:\n%s", stem, content)
	}
	if !strings.HasSuffix(content, "\n0611120001000000") {
		t.Errorf("close stamp should be in UTC:\n%s", content)
	}
	if record := readFile(t, f.auditPath); !strings.Contains(record, stem) {
		t.Errorf("audit stamp should match the file name %s:\n%s", stem, record)
	}
}

func TestLog_ElapsedPrefix(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)

	f.clock.Advance(250 * time.Microsecond)
	s.Log(1, "first")
	f.clock.Advance(time.Millisecond)
	s.Log(1, "second")
	s.Close()

	content := readFile(t, s.Path())
	if !strings.Contains(content, "\n250\t\tfirst") {
		t.Errorf("Expected 250us before first entry:\n%s", content)
	}
	if !strings.Contains(content, "\n1000\t\tsecond") {
		t.Errorf("Expected 1000us before second entry:\n%s", content)
	}
}

func TestLog_DetailFiltering(t *testing.T) {
	tests := []struct {
		name        string
		debug       bool
		detailLevel int
		detail      int
		want        bool
	}{
		{"below level", false, 3, 1, true},
		{"at level", false, 3, 3, true},
		{"above level", false, 3, 4, false},
		{"default level keeps 5", false, 0, 5, true},
		{"default level drops 6", false, 0, 6, false},
		{"debug writes everything", true, 3, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := Open(context.Background(), Config{
				BasePath:    f.base,
				Debug:       tt.debug,
				DetailLevel: tt.detailLevel,
				SkipPrune:   true,
			}, f.deps)
			s.Log(tt.detail, "filtered-entry")
			s.Close()

			got := strings.Contains(readFile(t, s.Path()), "filtered-entry")
			if got != tt.want {
				t.Errorf("entry written = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLog_FlushesOverThreshold(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, FlushThreshold: 4000, SkipPrune: true}, f.deps)
	defer s.Close()

	s.Log(1, "short")
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("Expected no flush below threshold, stat err = %v", err)
	}

	s.Log(1, strings.Repeat("x", 4100))
	content := readFile(t, s.Path())
	if !strings.Contains(content, "short") || !strings.Contains(content, strings.Repeat("x", 4100)) {
		t.Errorf("Expected both entries flushed:\n%s", content)
	}

	s.Log(1, "after-flush")
	if strings.Contains(readFile(t, s.Path()), "after-flush") {
		t.Error("Expected buffer to restart empty after flush")
	}
}

func TestLogNow_FlushesImmediately(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)
	defer s.Close()

	s.LogNow("urgent")
	if !strings.Contains(readFile(t, s.Path()), "\t\turgent") {
		t.Error("Expected LogNow entry on disk")
	}
}

func TestLogOverwrite_ReplacesPendingBuffer(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)

	s.Log(1, "discarded")
	s.LogOverwrite(1, "replacement")
	s.Close()

	content := readFile(t, s.Path())
	if strings.Contains(content, "discarded") || strings.Contains(content, "Starting log entry") {
		t.Errorf("Expected pending entries to be replaced:\n%s", content)
	}
	if !strings.HasPrefix(content, "\n0\t\treplacement") {
		t.Errorf("Expected log to start with the replacement entry:\n%s", content)
	}
}

func TestLogOverwrite_KeepsFlushedEntries(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)

	s.LogNow("kept")
	s.LogOverwrite(1, "replacement")
	s.Close()

	content := readFile(t, s.Path())
	if !strings.Contains(content, "kept") || !strings.Contains(content, "replacement") {
		t.Errorf("Expected flushed entry and replacement:\n%s", content)
	}
}

func TestNoLog_WritesNothing(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, NoLog: true, FlushThreshold: 10, SkipPrune: true}, f.deps)

	s.Log(1, "one")
	s.LogNow("two")
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("Expected no log file with no_log, stat err = %v", err)
	}
}

func TestWrite_IOWriter(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)

	fmt.Fprintln(s, "via writer")
	s.Close()

	content := readFile(t, s.Path())
	if !strings.Contains(content, "\t\tvia writer\n") {
		t.Errorf("Expected writer entry without its own newline:\n%s", content)
	}

	if _, err := s.Write([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close error = %v, want ErrClosed", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)

	if err := s.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	size := len(readFile(t, s.Path()))
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	s.Log(1, "ignored")
	if got := len(readFile(t, s.Path())); got != size {
		t.Errorf("file changed after Close: %d -> %d bytes", size, got)
	}
}

func TestClose_FlushFailureReported(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)

	// A directory where the file should be makes every append fail.
	if err := os.Mkdir(s.Path(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err == nil {
		t.Fatal("Expected Close() to report the flush failure")
	}
	if s.Err() == nil {
		t.Error("Expected Err() to hold the flush failure")
	}
}

// No base path falls back to the orphan directory and the audit record
// names the missing parameter.
func TestOpen_MissingBaseUsesOrphan(t *testing.T) {
	f := newFixture(t)
	s := Open(context.Background(), Config{Caller: "job", SkipPrune: true}, f.deps)
	s.Close()

	loc := s.Location()
	if !loc.UsedFallback {
		t.Fatal("Expected UsedFallback")
	}
	if !strings.HasPrefix(loc.Dir, f.orphan) {
		t.Errorf("Dir = %q, want under %q", loc.Dir, f.orphan)
	}
	if !strings.Contains(readFile(t, f.auditPath), "Missing required parameter") {
		t.Error("audit record does not mention the missing parameter")
	}
	if !strings.Contains(readFile(t, s.Path()), "Log directory parameter was not passed") {
		t.Error("session log does not carry the allocator notes")
	}
}

// Sequential sequence claims on one day.
func TestOpen_SequenceSubdirs(t *testing.T) {
	f := newFixture(t)
	cfg := Config{BasePath: f.base, AddSequenceSubdir: true, SkipPrune: true}

	first := Open(context.Background(), cfg, f.deps)
	first.Close()
	f.clock.Advance(time.Microsecond)
	second := Open(context.Background(), cfg, f.deps)
	second.Close()

	day := f.base + filepath.FromSlash("2021/06/11/")
	if first.Location().Dir != day+"1"+string(filepath.Separator) {
		t.Errorf("first Dir = %q, want sequence 1", first.Location().Dir)
	}
	if second.Location().Dir != day+"2"+string(filepath.Separator) {
		t.Errorf("second Dir = %q, want sequence 2", second.Location().Dir)
	}
}

func TestOpen_PrunesOnce(t *testing.T) {
	f := newFixture(t)
	expired := filepath.Join(f.base, "2021", "01", "01")
	if err := os.MkdirAll(expired, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(expired, "0101000000000000.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger := &fakeLedger{}
	f.deps.Pruner = retention.NewPruner(retention.Config{Clock: f.clock, Location: time.UTC})
	f.deps.Ledger = ledger

	s := Open(context.Background(), Config{BasePath: f.base, Caller: "job"}, f.deps)
	s.Close()

	outcome := s.PruneOutcome()
	if outcome == nil {
		t.Fatal("Expected a prune outcome")
	}
	if len(outcome.Expired) != 1 {
		t.Fatalf("Expired = %+v, want one day", outcome.Expired)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Error("expired day still exists")
	}

	content := readFile(t, s.Path())
	for _, part := range []string{
		"Prune files after 30 days for logs written to " + f.base + " per default",
		"Pruning files in " + strings.TrimSuffix(f.base, string(filepath.Separator)),
		"days old; greater than 30 days...deleting",
	} {
		if !strings.Contains(content, part) {
			t.Errorf("log missing %q:\n%s", part, content)
		}
	}

	if len(ledger.allocations) != 1 || ledger.allocations[0].SessionID != s.ID() {
		t.Errorf("ledger allocations = %+v", ledger.allocations)
	}
	if len(ledger.prunes) != 1 || ledger.prunes[0].Expired != 1 {
		t.Errorf("ledger prunes = %+v", ledger.prunes)
	}
}

func TestOpen_LedgerErrorsAreNotFatal(t *testing.T) {
	f := newFixture(t)
	f.deps.Ledger = &fakeLedger{err: errors.New("database is locked")}

	s := Open(context.Background(), Config{BasePath: f.base, SkipPrune: true}, f.deps)
	s.Log(1, "still logging")
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !strings.Contains(readFile(t, s.Path()), "still logging") {
		t.Error("Expected the session to keep logging")
	}
}

func TestOpen_WithHistoryStore(t *testing.T) {
	f := newFixture(t)
	store, err := history.Open(history.Config{Path: filepath.Join(f.root, "history.db")})
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	defer store.Close()
	f.deps.Ledger = store

	s := Open(context.Background(), Config{BasePath: f.base, Caller: "job", SkipPrune: true}, f.deps)
	s.Close()

	rows, err := store.ListAllocations(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 ledger row, got %d", len(rows))
	}
	if rows[0].Caller != "job" || rows[0].Dir != s.Location().Dir {
		t.Errorf("unexpected ledger row: %+v", rows[0])
	}
}

func TestSession_Metrics(t *testing.T) {
	f := newFixture(t)
	registry := prometheus.NewRegistry()
	f.deps.Metrics = metrics.NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	s := Open(context.Background(), Config{BasePath: f.base, DetailLevel: 2, SkipPrune: true}, f.deps)
	s.Log(1, "kept")
	s.Log(3, "dropped")
	s.Close()

	if got := counterValue(t, registry, "daylog_sessions_total", ""); got != 1 {
		t.Errorf("sessions_total = %v, want 1", got)
	}
	if got := counterValue(t, registry, "daylog_entries_total", "filtered"); got != 1 {
		t.Errorf("entries_total{filtered} = %v, want 1", got)
	}
	if got := counterValue(t, registry, "daylog_flushed_bytes_total", ""); got == 0 {
		t.Error("Expected flushed bytes to be recorded")
	}
}

// counterValue returns the value of a counter, matching the first label
// value when one is given.
func counterValue(t *testing.T, registry *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if label != "" && (len(m.GetLabel()) == 0 || m.GetLabel()[0].GetValue() != label) {
				continue
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
