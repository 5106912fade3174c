/*
Package cli provides command-line helpers for the daylog command.

Output Formatting:

Results print as text, JSON or CSV. Results that implement Table render as
aligned columns in text mode and as rows in CSV mode:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Progress Reporting:

Pruning every configured base reports one step per base:

	progress := cli.NewProgressReporter(cmd.ErrOrStderr())
	progress.Start(len(bases))
	for _, base := range bases {
		// prune base
		progress.Step(base)
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to exit statuses: configuration mistakes exit
with 2, other failures with 1.
*/
package cli
