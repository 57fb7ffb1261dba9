package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func captureConsole(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	oldOut, oldErr, oldNoColor := Stdout, Stderr, color.NoColor
	Stdout, Stderr, color.NoColor = stdout, stderr, true
	t.Cleanup(func() { Stdout, Stderr, color.NoColor = oldOut, oldErr, oldNoColor })
	return stdout, stderr
}

func TestPrinters(t *testing.T) {
	stdout, stderr := captureConsole(t)

	PrintMessage("queue has %d jobs", 3)
	PrintSuccess("removed %s", "12.0")
	PrintNote("suspicious: %v", []string{"e1"})
	PrintWarning("queue is empty")
	PrintError("condor_q failed")

	wantOut := "[CW] queue has 3 jobs\n[CW][PASS] removed 12.0\n[CW][NOTE] suspicious: [e1]\n"
	if stdout.String() != wantOut {
		t.Errorf("stdout = %q; want %q", stdout.String(), wantOut)
	}
	wantErr := "[CW][WARN] queue is empty\n[CW][ERR]  condor_q failed\n"
	if stderr.String() != wantErr {
		t.Errorf("stderr = %q; want %q", stderr.String(), wantErr)
	}
}

func TestPrintDebugFollowsDebugMode(t *testing.T) {
	_, stderr := captureConsole(t)
	old := DebugMode
	t.Cleanup(func() { DebugMode = old })

	DebugMode = false
	PrintDebug("hidden")
	if stderr.Len() != 0 {
		t.Fatalf("debug output without DebugMode: %q", stderr.String())
	}

	DebugMode = true
	PrintDebug("condor_q exited with status %d", 0)
	if !strings.Contains(stderr.String(), "[CW][DBG]  condor_q exited with status 0") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestQuietModeKeepsWarnings(t *testing.T) {
	stdout, stderr := captureConsole(t)
	old := QuietMode
	QuietMode = true
	t.Cleanup(func() { QuietMode = old })

	PrintMessage("chatty")
	PrintSuccess("done")
	PrintWarning("careful")

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q; want nothing in quiet mode", stdout.String())
	}
	if !strings.Contains(stderr.String(), "careful") {
		t.Errorf("warnings must survive quiet mode, stderr = %q", stderr.String())
	}
}

func TestStyleStatePlain(t *testing.T) {
	captureConsole(t)
	for _, s := range []string{"queued", "running", "completed", "failed"} {
		if got := StyleState(s); got != s {
			t.Errorf("StyleState(%q) = %q with colors off", s, got)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:           "512 B",
		1536:          "1.50 KB",
		16 << 20:      "16.00 MB",
		3 << 30:       "3.00 GB",
		(5 << 40) / 2: "2.50 TB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q; want %q", in, got, want)
		}
	}
}
