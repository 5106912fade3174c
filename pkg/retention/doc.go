// Package retention deletes dated log directories that have outlived their
// retention age.
//
// # Layout
//
// Log directories are laid out as <base>/YYYY/MM/DD[/N]/. The pruner is
// given any directory inside such a hierarchy, finds the base (the
// "year-parent") by locating the lowest four-digit year segment with a month
// and a day below it, and walks every year, month and day beneath it.
//
// # Policy
//
// The retention age defaults to 30 days and can be overridden per base
// path with a JSON file:
//
//	{"/pix/anro/edi/dat_connexion/log/": 90}
//
// The file is read once and cached; a Watcher drops the cache when the file
// changes.
//
// # Safety
//
// Deletion never reaches the year-parent or anything above it. Only
// directories whose names parse as a year, a month and a real calendar date
// are considered; everything else is left in place. A path without a year
// segment aborts the prune with ErrYearDirNotFound before anything is
// touched.
//
// # Basic Usage
//
//	pruner := retention.NewPruner(retention.Config{
//	    Policy: retention.NewPolicy("/etc/daylog/configPrune.json", 30),
//	})
//	outcome, err := pruner.Prune(ctx, "/data/log/2021/06/01/")
//
// # Scheduled Pruning
//
//	scheduler := retention.NewScheduler(pruner, "0 3 * * *", []string{"/data/log"})
//	if err := scheduler.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer scheduler.Stop()
package retention
