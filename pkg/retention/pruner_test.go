package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/daylog/pkg/clock"
)

// mkdays creates each slash-separated day path under base, with one file
// inside so deletions are recorded for files too.
func mkdays(t *testing.T, base string, days ...string) {
	t.Helper()
	for _, day := range days {
		dir := filepath.Join(base, filepath.FromSlash(day))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "0101000000000000.txt"), []byte("entry\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func newTestPruner(now time.Time, policy *Policy) *Pruner {
	return NewPruner(Config{
		Policy:   policy,
		Clock:    clock.NewFixed(now),
		Location: time.UTC,
	})
}

// One expired day, one retained.
func TestPrune_DeletesOnlyExpiredDays(t *testing.T) {
	base := filepath.Join(t.TempDir(), "data", "log")
	mkdays(t, base, "2021/01/01", "2021/06/01")
	now := time.Date(2021, 6, 11, 12, 0, 0, 0, time.UTC)

	outcome, err := newTestPruner(now, nil).Prune(context.Background(), filepath.Join(base, "2021", "06", "11"))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	if outcome.ScannedBase != base {
		t.Errorf("ScannedBase = %q, want %q", outcome.ScannedBase, base)
	}
	if outcome.MaxAgeDays != DefaultRetentionDays {
		t.Errorf("MaxAgeDays = %d, want %d", outcome.MaxAgeDays, DefaultRetentionDays)
	}
	if outcome.Started.IsZero() || outcome.Duration <= 0 {
		t.Errorf("Started = %v, Duration = %v, want both set", outcome.Started, outcome.Duration)
	}
	if len(outcome.Expired) != 1 || outcome.Expired[0].Path != filepath.Join(base, "2021", "01", "01") {
		t.Fatalf("Expired = %+v, want only 2021/01/01", outcome.Expired)
	}
	if outcome.Expired[0].AgeDays != 161 {
		t.Errorf("AgeDays = %d, want 161", outcome.Expired[0].AgeDays)
	}

	if exists(filepath.Join(base, "2021", "01", "01")) {
		t.Error("expired day directory still exists")
	}
	if !exists(filepath.Join(base, "2021", "06", "01")) {
		t.Error("retained day directory was deleted")
	}
	// January is now empty and goes too; 2021 still holds June.
	if exists(filepath.Join(base, "2021", "01")) {
		t.Error("empty month directory still exists")
	}
	if !exists(filepath.Join(base, "2021")) {
		t.Error("non-empty year directory was deleted")
	}

	summary, err := os.ReadFile(filepath.Join(base, SummaryFileName))
	if err != nil {
		t.Fatalf("prune summary not written: %v", err)
	}
	if n := strings.Count(string(summary), "days old; greater than"); n != 1 {
		t.Errorf("summary records %d expired days, want 1:\n%s", n, summary)
	}
	if !strings.Contains(string(summary), "Success: deleted directory "+filepath.Join(base, "2021", "01", "01")) {
		t.Errorf("summary missing day deletion:\n%s", summary)
	}
}

func TestPrune_BoundaryAgeIsRetained(t *testing.T) {
	base := filepath.Join(t.TempDir(), "log")
	mkdays(t, base, "2021/05/12", "2021/05/11")
	// 2021-05-12 is exactly 30 days old, 2021-05-11 is 31.
	now := time.Date(2021, 6, 11, 0, 0, 0, 0, time.UTC)

	outcome, err := newTestPruner(now, nil).PruneBase(context.Background(), base)
	if err != nil {
		t.Fatalf("PruneBase() error = %v", err)
	}

	if !exists(filepath.Join(base, "2021", "05", "12")) {
		t.Error("day exactly at the retention age was deleted")
	}
	if exists(filepath.Join(base, "2021", "05", "11")) {
		t.Error("day one past the retention age was retained")
	}
	if len(outcome.Expired) != 1 || outcome.Expired[0].AgeDays != 31 {
		t.Errorf("Expired = %+v, want one entry aged 31", outcome.Expired)
	}
}

func TestPrune_SkipsUnparseableNames(t *testing.T) {
	base := filepath.Join(t.TempDir(), "log")
	mkdays(t, base,
		"2019/02/30", // not a real date
		"2019/13/01", // not a month
		"2019/06/xx",
		"2019/06/1a",
		"2019/notes/01",
		"archive/01/01",
	)
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	outcome, err := newTestPruner(now, nil).PruneBase(context.Background(), base)
	if err != nil {
		t.Fatalf("PruneBase() error = %v", err)
	}

	if len(outcome.Expired) != 0 {
		t.Errorf("Expired = %+v, want none", outcome.Expired)
	}
	for _, p := range []string{"2019/02/30", "2019/13/01", "2019/06/xx", "2019/06/1a", "2019/notes/01", "archive/01/01"} {
		if !exists(filepath.Join(base, filepath.FromSlash(p))) {
			t.Errorf("%s was deleted", p)
		}
	}
}

func TestPrune_RemovesEmptyMonthAndYear(t *testing.T) {
	base := filepath.Join(t.TempDir(), "log")
	mkdays(t, base, "2019/03/04", "2019/03/05", "2022/01/01")
	// An empty month left behind by an earlier run.
	if err := os.MkdirAll(filepath.Join(base, "2022", "02"), 0o755); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)

	outcome, err := newTestPruner(now, nil).PruneBase(context.Background(), base)
	if err != nil {
		t.Fatalf("PruneBase() error = %v", err)
	}

	if exists(filepath.Join(base, "2019")) {
		t.Error("year emptied by pruning still exists")
	}
	if exists(filepath.Join(base, "2022", "02")) {
		t.Error("empty month still exists")
	}
	if !exists(filepath.Join(base, "2022", "01", "01")) {
		t.Error("recent day was deleted")
	}
	if !exists(base) {
		t.Fatal("year-parent was deleted")
	}
	if len(outcome.Expired) != 2 {
		t.Errorf("Expired = %d, want 2", len(outcome.Expired))
	}
	if len(outcome.DeletedFiles) != 2 {
		t.Errorf("DeletedFiles = %v, want 2 files", outcome.DeletedFiles)
	}
	if len(outcome.Failures) != 0 {
		t.Errorf("Failures = %+v", outcome.Failures)
	}
}

func TestPrune_RemovesMonthWithOnlyFiles(t *testing.T) {
	base := filepath.Join(t.TempDir(), "log")
	mkdays(t, base, "2010/01/01")
	// A stray file in a month is not a subdirectory: the month is still empty.
	if err := os.WriteFile(filepath.Join(base, "2010", "01", "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	outcome, err := newTestPruner(now, nil).PruneBase(context.Background(), base)
	if err != nil {
		t.Fatalf("PruneBase() error = %v", err)
	}
	if exists(filepath.Join(base, "2010")) {
		t.Error("year without subdirectories still exists")
	}
	found := false
	for _, f := range outcome.DeletedFiles {
		if filepath.Base(f) == "README" {
			found = true
		}
	}
	if !found {
		t.Errorf("stray file not reported, DeletedFiles = %v", outcome.DeletedFiles)
	}
}

func TestPrune_UsesPolicyOverride(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "log")
	mkdays(t, base, "2021/05/01")
	overrides := filepath.Join(root, "configPrune.json")
	if err := os.WriteFile(overrides, []byte(`{"`+base+`/": 90}`), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2021, 6, 11, 0, 0, 0, 0, time.UTC)

	outcome, err := newTestPruner(now, NewPolicy(overrides, 0)).PruneBase(context.Background(), base)
	if err != nil {
		t.Fatalf("PruneBase() error = %v", err)
	}
	if outcome.MaxAgeDays != 90 {
		t.Errorf("MaxAgeDays = %d, want 90", outcome.MaxAgeDays)
	}
	if !exists(filepath.Join(base, "2021", "05", "01")) {
		t.Error("day within the overridden age was deleted")
	}
	if exists(filepath.Join(base, SummaryFileName)) {
		t.Error("summary written although nothing changed")
	}
}

// No year segment means no deletions at all.
func TestPrune_AbortsWithoutYearSegment(t *testing.T) {
	root := t.TempDir()
	mkdays(t, root, "2001/01/01")
	dir := filepath.Join(root, "no", "dates", "here")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	outcome, err := newTestPruner(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), nil).Prune(context.Background(), dir)

	if !errors.Is(err, ErrYearDirNotFound) {
		t.Fatalf("Prune() error = %v, want ErrYearDirNotFound", err)
	}
	if outcome.Aborted == "" || !strings.Contains(outcome.Aborted, dir) {
		t.Errorf("Aborted = %q, want reason naming %s", outcome.Aborted, dir)
	}
	if outcome.Changed() || len(outcome.Expired) != 0 {
		t.Errorf("aborted prune reported changes: %+v", outcome)
	}
	if !exists(filepath.Join(root, "2001", "01", "01")) {
		t.Error("aborted prune deleted a directory")
	}
	if exists(filepath.Join(root, SummaryFileName)) {
		t.Error("aborted prune wrote a summary")
	}
}

func TestPrune_RespectsCancelledContext(t *testing.T) {
	base := filepath.Join(t.TempDir(), "log")
	mkdays(t, base, "2001/01/01")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPruner(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), nil).PruneBase(ctx, base)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("PruneBase() error = %v, want context.Canceled", err)
	}
	if !exists(filepath.Join(base, "2001", "01", "01")) {
		t.Error("cancelled prune deleted a directory")
	}
}

func TestPrune_SequenceDirectoryInput(t *testing.T) {
	base := filepath.Join(t.TempDir(), "log")
	mkdays(t, base, "2020/01/01", "2021/06/01/3")

	outcome, err := newTestPruner(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), nil).
		Prune(context.Background(), filepath.Join(base, "2021", "06", "01", "3")+string(filepath.Separator))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if outcome.ScannedBase != base {
		t.Errorf("ScannedBase = %q, want %q", outcome.ScannedBase, base)
	}
	if exists(filepath.Join(base, "2020")) {
		t.Error("expired year still exists")
	}
}

func TestYearParent(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"day directory", "/data/log/2021/06/01", "/data/log", true},
		{"trailing separator", "/data/log/2021/06/01/", "/data/log", true},
		{"sequence directory", "/data/log/2021/06/01/7/", "/data/log", true},
		{"lowest year wins", "/data/2020/log/2021/06/01", "/data/2020/log", true},
		{"year too deep", "/data/log/06/2021/01", "", false},
		{"no year", "/pix/anro/edi/log", "", false},
		{"year out of range", "/data/log/1899/06/01", "", false},
		{"five digit year", "/data/log/20210/06/01", "", false},
		{"year below root", "/2021/06/01", "", false},
		{"relative", "2021/06/01", ".", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := YearParent(filepath.FromSlash(tt.path))
			if ok != tt.wantOK {
				t.Fatalf("YearParent(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("YearParent(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		year, month int
		day         string
		wantOK      bool
	}{
		{2024, 2, "29", true},
		{2023, 2, "29", false},
		{2021, 4, "31", false},
		{2021, 6, "1", true},
		{2021, 6, "01", true},
		{2021, 6, "001", false},
		{2021, 6, "00", false},
		{2021, 6, "-1", false},
	}

	for _, tt := range tests {
		_, ok := parseDate(tt.year, tt.month, tt.day, time.UTC)
		if ok != tt.wantOK {
			t.Errorf("parseDate(%d, %d, %q) ok = %v, want %v", tt.year, tt.month, tt.day, ok, tt.wantOK)
		}
	}
}
