package condor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// Result is what a condor command left behind. Failures are reported here
// rather than as Go errors so callers can show the scheduler's own message.
type Result struct {
	ExitCode int
	Output   string
	Missing  bool // the binary did not exist on disk
}

// OK reports a zero exit status.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Executor runs one command to completion. env entries ("KEY=value") are
// added to the inherited environment.
type Executor interface {
	Run(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) Result
}

// Runner executes condor binaries and remembers which ones were reported missing.
type Runner struct {
	log       utils.Logger
	timeout   time.Duration
	maxOutput int64

	mu      sync.Mutex
	missing map[string]struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout kills commands running longer than d. Zero disables the limit.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithMaxOutput caps the captured output. Zero or negative disables the cap.
func WithMaxOutput(n int64) RunnerOption {
	return func(r *Runner) { r.maxOutput = n }
}

// NewRunner creates a Runner logging through log (utils.Console when nil).
func NewRunner(log utils.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = utils.Console{}
	}
	r := &Runner{
		log:     log,
		missing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// markMissing records name and reports whether it was new.
func (r *Runner) markMissing(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.missing[name]; seen {
		return false
	}
	r.missing[name] = struct{}{}
	return true
}

// Run executes name with args, feeding stdin when non-nil. Stdout and stderr
// are captured together.
func (r *Runner) Run(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) Result {
	if !utils.FileExists(name) {
		if r.markMissing(name) {
			r.log.Errorf("Cannot run %s. Check condor installation and instance configuration", name)
		}
		return Result{ExitCode: -1, Output: "No such file or directory " + name, Missing: true}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmdline := formatCommand(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out := &cappedBuffer{limit: r.maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out
	if r.timeout > 0 {
		cmd.WaitDelay = time.Second
	}

	err := cmd.Run()
	output := out.String()
	if err == nil {
		r.log.Debugf("%s exited with status 0", cmdline)
		return Result{ExitCode: 0, Output: output}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 && ctx.Err() == nil {
		code := exitErr.ExitCode()
		r.log.Debugf("%s exited with status %d", cmdline, code)
		r.log.Errorf("error while running %s: %s", cmdline, output)
		return Result{ExitCode: code, Output: output}
	}

	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	r.log.Errorf("error while running %s: %v", cmdline, err)
	msg := err.Error()
	if output != "" {
		msg += "\n" + output
	}
	return Result{ExitCode: -1, Output: msg}
}

func formatCommand(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
