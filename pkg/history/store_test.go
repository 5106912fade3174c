package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// drivers lists every registered SQLite driver the ledger supports.
var drivers = []string{DriverModernc, DriverCgo}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newDriverStore(t, DriverModernc)
}

func newDriverStore(t *testing.T, driver string) *Store {
	t.Helper()
	store, err := Open(Config{
		Driver: driver,
		Path:   filepath.Join(t.TempDir(), "nested", "history.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty path", Config{Driver: DriverModernc}},
		{"unknown driver", Config{Driver: "postgres", Path: "x.db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg)
			if err == nil {
				t.Fatal("Expected error")
			}
			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Errorf("Expected *StorageError, got %T", err)
			}
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := first.RecordAllocation(context.Background(), Allocation{
		SessionID: "s1", Dir: "/data/log/2021/6/11/", FileName: "0611120000000000.txt",
	}); err != nil {
		t.Fatalf("RecordAllocation() error = %v", err)
	}
	first.Close()

	second, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer second.Close()

	got, err := second.ListAllocations(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 allocation after reopen, got %d", len(got))
	}
}

func TestStore_Allocations(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			testAllocations(t, newDriverStore(t, driver))
		})
	}
}

func testAllocations(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2021, 6, 11, 12, 0, 0, 0, time.UTC)

	records := []Allocation{
		{SessionID: "a", Caller: "job", BasePath: "/data/log/", Dir: "/data/log/2021/6/11/", FileName: "one.txt", CreatedAt: base},
		{SessionID: "b", Dir: "/tmp/orphanLog/2021/6/11/", FileName: "two.txt", UsedFallback: true, CreatedAt: base.Add(time.Second)},
		{SessionID: "c", Dir: "/data/log/2021/6/11/3/", FileName: "three.txt", Sequence: true, Fatal: true, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range records {
		if err := store.RecordAllocation(ctx, r); err != nil {
			t.Fatalf("RecordAllocation(%s) error = %v", r.SessionID, err)
		}
	}

	got, err := store.ListAllocations(ctx, 2)
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(got))
	}
	if got[0].SessionID != "c" || got[1].SessionID != "b" {
		t.Errorf("Expected newest first [c b], got [%s %s]", got[0].SessionID, got[1].SessionID)
	}
	if !got[0].Sequence || !got[0].Fatal || got[0].UsedFallback {
		t.Errorf("Flags not round-tripped: %+v", got[0])
	}
	if !got[1].UsedFallback {
		t.Errorf("Expected fallback flag on b: %+v", got[1])
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base.Add(2*time.Second))
	}

	all, err := store.ListAllocations(ctx, 10)
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if all[2].Caller != "job" || all[2].BasePath != "/data/log/" {
		t.Errorf("Optional columns not round-tripped: %+v", all[2])
	}
}

func TestStore_PruneRuns(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			testPruneRuns(t, newDriverStore(t, driver))
		})
	}
}

func testPruneRuns(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2021, 6, 11, 3, 0, 0, 0, time.UTC)

	runs := []PruneRun{
		{Dir: "/data/log/2021/6/11/", ScannedBase: "/data/log/", MaxAgeDays: 30, Expired: 2, DeletedDirs: 3, DeletedFiles: 9, StartedAt: start, Duration: 1500 * time.Microsecond},
		{SessionID: "s2", Dir: "/", Aborted: "year parent is the filesystem root", StartedAt: start.Add(time.Minute)},
	}
	for _, r := range runs {
		if err := store.RecordPrune(ctx, r); err != nil {
			t.Fatalf("RecordPrune() error = %v", err)
		}
	}

	got, err := store.ListPruneRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListPruneRuns() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(got))
	}

	aborted, completed := got[0], got[1]
	if aborted.Aborted == "" || aborted.SessionID != "s2" {
		t.Errorf("Expected aborted run first, got %+v", aborted)
	}
	if completed.ScannedBase != "/data/log/" || completed.MaxAgeDays != 30 {
		t.Errorf("Unexpected completed run: %+v", completed)
	}
	if completed.Expired != 2 || completed.DeletedDirs != 3 || completed.DeletedFiles != 9 {
		t.Errorf("Counts not round-tripped: %+v", completed)
	}
	if completed.Duration != 1500*time.Microsecond {
		t.Errorf("Duration = %v, want 1.5ms", completed.Duration)
	}
}

func TestStore_CloseTwice(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestStore_ContextCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RecordAllocation(ctx, Allocation{SessionID: "x", Dir: "/d/", FileName: "f"})
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}

func TestStore_Ping(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			store := newDriverStore(t, driver)
			if err := store.Ping(context.Background()); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}

			store.Close()
			if err := store.Ping(context.Background()); err == nil {
				t.Error("Expected Ping() to fail after Close")
			}
		})
	}
}
