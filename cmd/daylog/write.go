package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/daylog/pkg/cli"
	"mercator-hq/daylog/pkg/session"
	"mercator-hq/daylog/pkg/telemetry/logging"
)

var writeFlags struct {
	base   string
	seq    bool
	caller string
	detail int
	debug  bool
	noLog  bool
}

var writeCmd = &cobra.Command{
	Use:   "write [MESSAGE...]",
	Short: "Write entries through a complete logging session",
	Long: `Open a session, write MESSAGE (or every line read from stdin when no
message is given) as entries, and close the session. The session allocates
its directory, prunes the hierarchy once and prints the log file path.
SIGINT or SIGTERM stops reading stdin; the entries read so far are still
flushed and the command exits with status 1.

Examples:
  # One entry
  daylog write --base /pix/anro/edi/dat_connexion/log/ "transfer complete"

  # Pipe a job's output into its own numbered directory
  ./job.sh | daylog write --base /data/log/ --seq --caller job.sh`,
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)

	writeCmd.Flags().StringVarP(&writeFlags.base, "base", "b", "", "base path (default: session.base_path)")
	writeCmd.Flags().BoolVar(&writeFlags.seq, "seq", false, "write into a numbered directory beneath the day directory")
	writeCmd.Flags().StringVar(&writeFlags.caller, "caller", "", "caller name (default: session.caller)")
	writeCmd.Flags().IntVar(&writeFlags.detail, "detail", 1, "detail level of the entries")
	writeCmd.Flags().BoolVar(&writeFlags.debug, "debug", false, "write entries regardless of detail level")
	writeCmd.Flags().BoolVar(&writeFlags.noLog, "no-log", false, "run the session without writing the file")
}

func runWrite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return cli.NewCommandError("write", err)
	}
	defer a.Close()

	sc := a.sessionConfig()
	sc.BasePath = firstNonEmpty(writeFlags.base, sc.BasePath)
	sc.Caller = firstNonEmpty(writeFlags.caller, sc.Caller, "daylog write")
	sc.AddSequenceSubdir = sc.AddSequenceSubdir || writeFlags.seq
	sc.Debug = sc.Debug || writeFlags.debug
	sc.NoLog = sc.NoLog || writeFlags.noLog

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()
	ctx = logging.WithCaller(ctx, sc.Caller)
	ctx = logging.WithBasePath(ctx, sc.BasePath)

	s := session.Open(ctx, sc, a.sessionDeps())
	defer s.Close()

	var interrupted error
	if len(args) > 0 {
		s.Log(writeFlags.detail, strings.Join(args, " "))
	} else if err := copyLines(ctx, s, stdin(cmd), writeFlags.detail); err != nil {
		if !errors.Is(err, context.Canceled) {
			return cli.NewCommandError("write", err)
		}
		interrupted = err
		slog.Warn("write interrupted, closing session", "file", s.Path())
	}

	if err := s.Close(); err != nil {
		return cli.NewCommandError("write", err)
	}
	fmt.Fprintln(stdout(cmd), s.Path())
	if interrupted != nil {
		return cli.NewCommandError("write", interrupted)
	}
	return nil
}

// copyLines logs every line of r as one entry until r is exhausted or ctx
// is cancelled. A reader blocked in Read is left behind on cancellation.
func copyLines(ctx context.Context, s *session.Session, r io.Reader, detail int) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return ctx.Err()
				}
			}
			s.Log(detail, line)
		}
	}
}

func stdin(cmd *cobra.Command) io.Reader {
	if cmd == nil {
		return os.Stdin
	}
	return cmd.InOrStdin()
}
