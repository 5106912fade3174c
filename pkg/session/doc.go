// Package session is the buffered log file a component writes to during
// one run.
//
// Open allocates the dated directory, writes the start lines, prunes the
// hierarchy once and returns a Session that buffers entries in memory.
// Entries are flushed when the buffer passes the flush threshold, on
// LogNow, and on Close. Callers defer Close so the closing lines reach the
// file on every exit path.
//
// # Entry Format
//
// The file starts with the session stamp. Each entry is one line prefixed
// with the microseconds elapsed since the previous entry:
//
//	0611120000000000
//	0		Starting log entry called by dat_connexion
//	0		User: edi
//	1523		connected to remote host
//	...
//	90000000		Total elapsed time
//	00days 00hrs 01mins 30secs		Total elapsed time
//	0611120130000000
//
// # Basic Usage
//
//	s := session.Open(ctx, session.Config{
//		BasePath: "/pix/anro/edi/dat_connexion/log/",
//		Caller:   "dat_connexion",
//	}, session.Deps{Allocator: allocator, Pruner: pruner})
//	defer s.Close()
//
//	s.Log(1, "connected")
//	s.Log(6, "raw payload follows") // written only with Debug or DetailLevel >= 6
package session
