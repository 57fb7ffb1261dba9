package condor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// writeScript creates an executable shell script named name in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to create script %s: %v", name, err)
	}
	return path
}

type call struct {
	name  string
	args  []string
	stdin string
	env   []string
}

// fakeExecutor answers with canned results keyed by "<base name> <args...>"
// or by the bare base name.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []call
	results  map[string]Result
	fallback Result
}

func (f *fakeExecutor) Run(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) Result {
	var in string
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		in = string(b)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args, stdin: in, env: env})
	f.mu.Unlock()

	base := filepath.Base(name)
	if r, ok := f.results[strings.TrimSpace(base+" "+strings.Join(args, " "))]; ok {
		return r
	}
	if r, ok := f.results[base]; ok {
		return r
	}
	return f.fallback
}

func (f *fakeExecutor) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}
