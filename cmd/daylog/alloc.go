package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/daylog/pkg/cli"
	"mercator-hq/daylog/pkg/logdir"
)

var allocFlags struct {
	base   string
	seq    bool
	caller string
	format string
}

var allocCmd = &cobra.Command{
	Use:   "alloc",
	Short: "Allocate and create today's log directory",
	Long: `Allocate the dated directory for a base path, create it and print the
resulting location. Nothing is written to the directory.

A missing or unusable base path is replaced by the orphan directory; the
substitution is reported in the output and in the audit record.

Examples:
  # Allocate under a base path
  daylog alloc --base /pix/anro/edi/dat_connexion/log/

  # Claim the next numbered directory for this run
  daylog alloc --base /pix/anro/edi/dat_connexion/log/ --seq

  # Machine-readable output
  daylog alloc --base /data/log/ --format json`,
	RunE: runAlloc,
}

func init() {
	rootCmd.AddCommand(allocCmd)

	allocCmd.Flags().StringVarP(&allocFlags.base, "base", "b", "", "base path (default: session.base_path)")
	allocCmd.Flags().BoolVar(&allocFlags.seq, "seq", false, "claim a numbered directory beneath the day directory")
	allocCmd.Flags().StringVar(&allocFlags.caller, "caller", "", "caller name for the audit record (default: session.caller)")
	allocCmd.Flags().StringVarP(&allocFlags.format, "format", "f", "text", "output format (text, json, csv)")
}

// allocResult is the printed form of a logdir.Location.
type allocResult struct {
	Dir          string   `json:"dir"`
	FileName     string   `json:"file_name"`
	Path         string   `json:"path"`
	UsedFallback bool     `json:"used_fallback"`
	Fatal        bool     `json:"fatal"`
	Notes        []string `json:"notes,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

func newAllocResult(loc logdir.Location) allocResult {
	r := allocResult{
		Dir:          loc.Dir,
		FileName:     loc.FileName,
		Path:         loc.Path(),
		UsedFallback: loc.UsedFallback,
		Fatal:        loc.Fatal(),
		Notes:        loc.Notes,
	}
	for _, err := range loc.Errors {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

func (r allocResult) Header() []string { return []string{"FIELD", "VALUE"} }

func (r allocResult) Rows() [][]string {
	rows := [][]string{
		{"dir", r.Dir},
		{"file", r.FileName},
		{"path", r.Path},
		{"fallback", strconv.FormatBool(r.UsedFallback)},
		{"fatal", strconv.FormatBool(r.Fatal)},
	}
	if len(r.Errors) > 0 {
		rows = append(rows, []string{"errors", strings.Join(r.Errors, "; ")})
	}
	return rows
}

func runAlloc(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(allocFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return cli.NewCommandError("alloc", err)
	}
	defer a.Close()

	req := logdir.Request{
		BasePath:          firstNonEmpty(allocFlags.base, cfg.Session.BasePath),
		AddSequenceSubdir: allocFlags.seq || cfg.Session.AddSequenceSubdir,
		Caller:            firstNonEmpty(allocFlags.caller, cfg.Session.Caller),
		SessionID:         uuid.NewString(),
	}
	loc := a.allocator.Allocate(req)
	a.recordAllocation(context.Background(), req, loc)

	if err := cli.NewFormatter(format).FormatTo(stdout(cmd), newAllocResult(loc)); err != nil {
		return err
	}
	if err := loc.FatalError(); err != nil {
		return cli.NewCommandError("alloc", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
