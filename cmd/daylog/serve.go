package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/daylog/pkg/cli"
	"mercator-hq/daylog/pkg/config"
	"mercator-hq/daylog/pkg/retention"
	"mercator-hq/daylog/pkg/server"
	"mercator-hq/daylog/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	schedule      string
	runNow        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Prune configured bases on a schedule",
	Long: `Run as a daemon that prunes every base in retention.bases on the cron
schedule in retention.schedule. When retention.watch_overrides is set, edits
to the retention override file take effect without a restart.

When metrics are enabled, /metrics, /health, /ready and /version are served
on telemetry.metrics.listen_address. SIGHUP reloads the configuration file
and applies retention.default_days. SIGINT or SIGTERM stops the daemon
after the running prune finishes.

Examples:
  # Run with the configured schedule
  daylog serve --config /etc/daylog/config.yaml

  # Prune once at startup, then every night at 03:00
  daylog serve --run-now --schedule "0 3 * * *"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override telemetry listen address")
	serveCmd.Flags().StringVar(&serveFlags.schedule, "schedule", "", "override retention.schedule (cron expression)")
	serveCmd.Flags().BoolVar(&serveFlags.runNow, "run-now", false, "prune every base once before waiting for the schedule")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.schedule != "" {
		cfg.Retention.Schedule = serveFlags.schedule
	}
	if cfg.Retention.Schedule == "" {
		return cli.NewConfigError("retention.schedule", "a cron schedule is required for serve")
	}
	if len(cfg.Retention.Bases) == 0 {
		return cli.NewConfigError("retention.bases", "no bases configured for serve")
	}

	a, err := newApp(cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer a.Close()

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	go a.reloadOn(ctx, cli.ReloadSignals(ctx), cfgFile)

	return a.serve(ctx, serveFlags.runNow)
}

// reloadOn reloads the configuration from path for every value received on
// sig until ctx is cancelled.
func (a *app) reloadOn(ctx context.Context, sig <-chan os.Signal, path string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := a.reload(path); err != nil {
				slog.Error("configuration reload failed, keeping current settings", "error", err)
			}
		}
	}
}

// reload re-reads the configuration and applies the retention default.
// The override file is re-read on the next lookup. Other settings take
// effect on restart.
func (a *app) reload(path string) error {
	if err := config.ReloadConfig(path); err != nil {
		return err
	}
	cfg := config.GetConfig()
	a.policy.SetDefaultDays(cfg.Retention.DefaultDays)
	a.policy.Invalidate()
	slog.Info("configuration reloaded", "default_days", a.policy.DefaultDays())
	return nil
}

// serve runs the scheduler, the override watcher and the telemetry server
// until ctx is cancelled.
func (a *app) serve(ctx context.Context, runNow bool) error {
	scheduler := retention.NewScheduler(a.pruner, a.cfg.Retention.Schedule, a.cfg.Retention.Bases)
	scheduler.OnRun(func(base string, outcome *retention.Outcome, err error) {
		a.recordPrune(ctx, outcome)
	})

	if runNow {
		scheduler.RunOnce(ctx)
	}
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("retention.schedule", err.Error())
	}
	defer scheduler.Stop()

	if next := scheduler.NextRun(); next != nil {
		slog.Info("daylog serve started",
			"bases", len(a.cfg.Retention.Bases),
			"schedule", a.cfg.Retention.Schedule,
			"next_run", next.Format(time.RFC3339),
		)
	}

	if a.cfg.Retention.WatchOverrides && a.policy.Path() != "" {
		watcher, err := retention.NewWatcher(a.policy)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		go func() {
			if err := watcher.Watch(ctx, nil); err != nil {
				slog.Error("retention override watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	if !a.cfg.Telemetry.Metrics.Enabled {
		<-ctx.Done()
		slog.Info("daylog serve stopping")
		return nil
	}

	srv := server.New(server.Config{ListenAddress: a.cfg.Telemetry.Metrics.ListenAddress}, a.telemetryMux(scheduler))
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	slog.Info("daylog serve stopping")
	return nil
}

// telemetryMux routes the metrics and probe endpoints.
func (a *app) telemetryMux(scheduler *retention.Scheduler) *http.ServeMux {
	checker := health.New(2 * time.Second)
	checker.RegisterCheck("scheduler", func(ctx context.Context) error {
		if !scheduler.IsRunning() {
			return errors.New("retention scheduler is not running")
		}
		return nil
	})
	if a.ledger != nil {
		checker.RegisterCheck("history", a.ledger.Ping)
	}
	checker.RegisterCheck("retention_overrides", func(ctx context.Context) error {
		if err := a.policy.LoadError(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("override file unreadable, using %d days: %w", a.policy.DefaultDays(), err)
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	health.Register(mux, checker, Version, GitCommit, BuildDate)
	return mux
}
