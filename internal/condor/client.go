package condor

import (
	"context"
	"strings"
	"sync"

	"github.com/gurneyalex/cubicweb-condor/internal/config"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// Client issues condor commands for one installation. Submissions and
// anything else taking Lock() are serialized.
type Client struct {
	exec   Executor
	binDir string
	python string
	log    utils.Logger

	mu sync.Mutex
}

// Options configures a Client.
type Options struct {
	CondorRoot string         // installation prefix; "" resolves commands on PATH
	Python     string         // interpreter used as the job executable
	Executor   Executor       // defaults to a Runner
	Log        utils.Logger   // defaults to utils.Console
	RunnerOpts []RunnerOption // only used when Executor is nil
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	log := opts.Log
	if log == nil {
		log = utils.Console{}
	}
	exec := opts.Executor
	if exec == nil {
		exec = NewRunner(log, opts.RunnerOpts...)
	}
	python := opts.Python
	if python == "" {
		python = "python3"
	}
	return &Client{
		exec:   exec,
		binDir: BinDir(opts.CondorRoot),
		python: python,
		log:    log,
	}
}

// NewClientFromConfig builds a Client from the loaded application settings.
func NewClientFromConfig(cfg *config.Config) *Client {
	return NewClient(Options{
		CondorRoot: cfg.CondorRoot,
		Python:     cfg.Python,
		RunnerOpts: []RunnerOption{
			WithTimeout(cfg.CommandTimeout),
			WithMaxOutput(cfg.MaxOutputBytes),
		},
	})
}

// Lock returns the lock shared by submissions and reconciliation passes.
func (c *Client) Lock() sync.Locker {
	return &c.mu
}

// BinDir returns the configured bin directory ("" when commands come from PATH).
func (c *Client) BinDir() string {
	return c.binDir
}

// Python returns the interpreter written into submit descriptions.
func (c *Client) Python() string {
	return c.python
}

// CommandPath resolves a condor command for this installation.
func (c *Client) CommandPath(cmd string) string {
	return commandPath(c.binDir, cmd)
}

func (c *Client) run(ctx context.Context, cmd string, args ...string) Result {
	return c.exec.Run(ctx, nil, nil, c.CommandPath(cmd), args...)
}

// Status runs condor_status.
func (c *Client) Status(ctx context.Context) Result {
	return c.run(ctx, CmdStatus)
}

// Queue runs condor_q.
func (c *Client) Queue(ctx context.Context) Result {
	return c.run(ctx, CmdQueue)
}

// Remove runs condor_rm for one job or cluster id.
func (c *Client) Remove(ctx context.Context, jobID string) Result {
	return c.run(ctx, CmdRemove, jobID)
}

// JobIDs lists the ids currently in the queue. A failing condor_q yields an
// empty list, which is indistinguishable from an empty queue.
func (c *Client) JobIDs(ctx context.Context) []string {
	res := c.Queue(ctx)
	if !res.OK() {
		return []string{}
	}
	ids := ParseJobIDs(res.Output)
	c.log.Debugf("found the following jobs in Condor queue: %v", ids)
	return ids
}

// Submit pipes a python job description to condor_submit. args are the
// interpreter arguments. env is added to condor_submit's environment, which
// the job inherits through getenv. Only invalid params produce an error;
// command failures are reported in the Result.
func (c *Client) Submit(ctx context.Context, args []string, params JobParams, env ...string) (Result, error) {
	desc, err := RenderSubmitDescription(c.python, args, params)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exec.Run(ctx, strings.NewReader(desc), env, c.CommandPath(CmdSubmit)), nil
}

// WriteSubmitFile writes the description Submit would send into the job's
// working directory as <name>.<operation>.submit.
func (c *Client) WriteSubmitFile(args []string, params JobParams, operation string) (string, error) {
	return WriteSubmitFile(c.python, args, params, operation)
}

// SubmitDAG submits a DAG description file with condor_submit_dag -force.
// env is added to the environment DAGMan starts with.
func (c *Client) SubmitDAG(ctx context.Context, dagFile string, env ...string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exec.Run(ctx, nil, env, c.CommandPath(CmdDAG), "-force", dagFile)
}
