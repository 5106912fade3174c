package main

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"mercator-hq/daylog/pkg/cli"
)

func setAllocFlags(base string, seq bool, format string) {
	allocFlags.base = base
	allocFlags.seq = seq
	allocFlags.caller = ""
	allocFlags.format = format
}

func TestAlloc_CreatesDayDirectory(t *testing.T) {
	cfg := testConfig(t)
	setAllocFlags("", false, "json")

	cmd, out := testCommand()
	if err := runAlloc(cmd, nil); err != nil {
		t.Fatalf("runAlloc() error = %v", err)
	}

	var result allocResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if !strings.HasPrefix(result.Dir, cfg.Session.BasePath) {
		t.Errorf("Dir = %q, want under %q", result.Dir, cfg.Session.BasePath)
	}
	if result.UsedFallback || result.Fatal {
		t.Errorf("unexpected fallback: %+v", result)
	}
	if info, err := os.Stat(result.Dir); err != nil || !info.IsDir() {
		t.Errorf("Dir %q was not created: %v", result.Dir, err)
	}
	if !strings.HasSuffix(result.FileName, ".txt") || len(result.FileName) != len("0611120000000000.txt") {
		t.Errorf("FileName = %q", result.FileName)
	}
}

func TestAlloc_SequenceDirectories(t *testing.T) {
	testConfig(t)
	setAllocFlags("", true, "json")

	var dirs []string
	for i := 0; i < 2; i++ {
		cmd, out := testCommand()
		if err := runAlloc(cmd, nil); err != nil {
			t.Fatalf("runAlloc() error = %v", err)
		}
		var result allocResult
		if err := json.Unmarshal(out.Bytes(), &result); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		dirs = append(dirs, result.Dir)
	}

	if !strings.HasSuffix(dirs[0], "/1/") || !strings.HasSuffix(dirs[1], "/2/") {
		t.Errorf("sequence dirs = %v, want .../1/ then .../2/", dirs)
	}
}

func TestAlloc_MissingBaseUsesOrphan(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.BasePath = ""
	setAllocFlags("", false, "text")

	cmd, out := testCommand()
	if err := runAlloc(cmd, nil); err != nil {
		t.Fatalf("runAlloc() error = %v", err)
	}
	if !strings.Contains(out.String(), cfg.Fallback.OrphanDir) {
		t.Errorf("Expected orphan dir in output:\n%s", out.String())
	}

	audit, err := os.ReadFile(cfg.Audit.Path)
	if err != nil {
		t.Fatalf("audit record not written: %v", err)
	}
	if !strings.Contains(string(audit), "Missing required parameter: logDir") {
		t.Errorf("audit record = %q", audit)
	}
}

func TestAlloc_RecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = true
	setAllocFlags("", false, "text")

	cmd, _ := testCommand()
	if err := runAlloc(cmd, nil); err != nil {
		t.Fatalf("runAlloc() error = %v", err)
	}

	historyFlags.limit = 10
	historyFlags.prunes = false
	historyFlags.format = "csv"
	cmd, out := testCommand()
	if err := runHistory(cmd, nil); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("history rows = %d, want header plus 1:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "cmd_test") {
		t.Errorf("row = %q, want caller cmd_test", lines[1])
	}
}

func TestAlloc_InvalidFormat(t *testing.T) {
	testConfig(t)
	setAllocFlags("", false, "yaml")

	err := runAlloc(nil, nil)
	wantExitCode(t, err, cli.ExitBadUsage)
}
