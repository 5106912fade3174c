// Package logging configures the process-wide structured logger.
//
// The package wraps log/slog. It turns the telemetry.logging configuration
// section into a handler (json, text or console) and installs it as the
// slog default, so every component logger created with
// slog.Default().With("component", ...) shares one level and format.
//
// Operational logs never go into the per-session log files; those are
// written by pkg/session.
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithCaller(ctx, "dat_connexion")
//	logger.InfoContext(ctx, "session opened", "file", path)
//	// level=INFO msg="session opened" caller=dat_connexion file=...
package logging
