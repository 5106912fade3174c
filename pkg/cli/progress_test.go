package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSimpleProgressBasic(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(2)
	progress.Step("/data/a")
	progress.Step("/data/b")
	progress.Finish()

	output := buf.String()
	for _, want := range []string{"Pruning:", "(1/2 bases) /data/a", "(2/2 bases) /data/b", "100%"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output: %q", want, output)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Expected Finish to end the line")
	}
}

func TestSimpleProgressStepPastTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(1)
	progress.Step("a")
	progress.Step("b")

	if strings.Contains(buf.String(), "2/1") {
		t.Errorf("Progress went past total: %q", buf.String())
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(0)
	progress.Step("a")
	progress.Finish()

	if buf.Len() != 0 {
		t.Errorf("Expected no output for zero total, got %q", buf.String())
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(3)
	progress.Error(errors.New("permission denied"))

	output := buf.String()
	if !strings.Contains(output, "Error:") || !strings.Contains(output, "permission denied") {
		t.Errorf("Expected error output, got %q", output)
	}
}
