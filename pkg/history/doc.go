// Package history keeps a SQLite ledger of log directory allocations and
// prune runs. It records where sessions were placed and what retention
// removed; it never stores log contents.
//
// Two database/sql drivers are supported: "sqlite" (modernc.org/sqlite, pure
// Go, the default) and "sqlite3" (github.com/mattn/go-sqlite3, requires cgo).
//
//	store, err := history.Open(history.Config{Path: "data/daylog.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	recent, err := store.ListAllocations(ctx, 20)
package history
