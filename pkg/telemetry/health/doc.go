// Package health serves the probe endpoints of "daylog serve".
//
// A Checker holds named component checks. The serve command registers one
// for the retention scheduler and, when the history ledger is enabled, one
// that pings the database.
//
// # Endpoints
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 503 when any check fails
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("history", store.Ping)
//
//	mux := http.NewServeMux()
//	health.Register(mux, checker, version, commit, buildDate)
package health
