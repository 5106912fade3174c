// Package logdir allocates dated log directories.
//
// # Layout
//
// For a base path such as /pix/anro/edi/log/ and a timestamp of
// 2015-12-17 the allocator produces
//
//	/pix/anro/edi/log/2015/12/17/
//
// and, when a sequence subdirectory is requested, the next free number
// beneath the day directory:
//
//	/pix/anro/edi/log/2015/12/17/3/
//
// The log file itself is named from the allocation timestamp with
// microsecond resolution (MMDDhhmmssuuuuuu.txt).
//
// # Fallback
//
// A base path that is empty, or whose first three path segments do not
// exist, is replaced by the orphan directory. A directory that cannot be
// created is retried once beneath the orphan directory. Both cases set
// Location.UsedFallback and write one line to the audit record.
//
// # Sequence claims
//
// By default the next sequence number is found by scanning and then created,
// so two processes allocating at the same moment can end up sharing a
// number. Config.ExclusiveSequence switches to an exclusive mkdir that moves
// on to the next number when the directory already exists.
//
// The allocator never deletes anything.
package logdir
