package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/store"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

// executionIDEnv carries the execution id into tracked jobs.
const executionIDEnv = "CONDORWEB_EXECUTION_ID"

var (
	submitName      string
	submitWorkDir   string
	submitLogFile   string
	submitStderr    string
	submitWriteFile string
	submitNoTrack   bool
)

var submitCmd = &cobra.Command{
	Use:   "submit [flags] -- <python arguments...>",
	Short: "Submit a python job to HTCondor",
	Long: `Submit a python job with condor_submit.

Everything after "--" is passed to the python interpreter configured with the
"python" key. The submit description is piped to condor_submit; use
--write-file to also keep a copy as <workdir>/<name>.<operation>.submit.

Unless --no-track is given, the job is recorded as an execution so that the
reconciler can fail it if it disappears from the queue. The execution id is
exported to the job as $CONDORWEB_EXECUTION_ID; the job reports its progress
with:

  condorweb executions fire $CONDORWEB_EXECUTION_ID start
  condorweb executions fire $CONDORWEB_EXECUTION_ID complete

A job that leaves the queue while still queued or running is failed by the
reconciler.`,
	Example: `  condorweb submit --name train -- train.py --epochs 10
  condorweb submit --name nightly --workdir /data/nightly --write-file nightly -- -m jobs.nightly`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitName, "name", "n", "", "Job name (required)")
	submitCmd.Flags().StringVarP(&submitWorkDir, "workdir", "w", "", "Working directory (default: current directory)")
	submitCmd.Flags().StringVar(&submitLogFile, "log", "", "Condor log file (default: <workdir>/<name>.log)")
	submitCmd.Flags().StringVar(&submitStderr, "stderr", "", "Job stderr file (default: <workdir>/<name>.err)")
	submitCmd.Flags().StringVar(&submitWriteFile, "write-file", "", "Also write the submit description for this operation name")
	submitCmd.Flags().BoolVar(&submitNoTrack, "no-track", false, "Do not record an execution for this job")
	submitCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(submitCmd)
}

// buildJobParams fills unset paths relative to the working directory.
func buildJobParams(name, workDir, logFile, stderr string) (condor.JobParams, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return condor.JobParams{}, err
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return condor.JobParams{}, err
	}
	if logFile == "" {
		logFile = filepath.Join(workDir, name+".log")
	}
	if stderr == "" {
		stderr = filepath.Join(workDir, name+".err")
	}
	return condor.JobParams{
		Name:             name,
		WorkingDirectory: workDir,
		LogFile:          logFile,
		Stderr:           stderr,
	}, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	params, err := buildJobParams(submitName, submitWorkDir, submitLogFile, submitStderr)
	if err != nil {
		return err
	}
	if !utils.DirExists(params.WorkingDirectory) {
		ExitWithError("Working directory %s does not exist", utils.StylePath(params.WorkingDirectory))
	}

	client := newClient()

	if submitWriteFile != "" {
		path, err := client.WriteSubmitFile(args, params, submitWriteFile)
		if err != nil {
			return err
		}
		utils.PrintNote("Submit file written to %s", utils.StylePath(path))
	}

	ctx := cmd.Context()
	if submitNoTrack {
		res, err := client.Submit(ctx, args, params)
		if err != nil {
			return err
		}
		return commandResult(condor.CmdSubmit, res)
	}

	st := openStore()
	defer st.Close()
	return submitTracked(ctx, st, func(ctx context.Context, env []string) (condor.Result, error) {
		return client.Submit(ctx, args, params, env...)
	}, &model.Execution{Name: params.Name, WorkDir: params.WorkingDirectory})
}

// submitTracked records an execution, runs submit with the execution id in
// its environment and stores the outcome: the cluster id on success, a failed
// state otherwise.
func submitTracked(ctx context.Context, st *store.Store, submit func(context.Context, []string) (condor.Result, error), e *model.Execution) error {
	if err := st.Create(ctx, e); err != nil {
		return err
	}
	utils.PrintDebug("Created execution %s", e.ID)

	res, err := submit(ctx, []string{executionIDEnv + "=" + e.ID})
	if err == nil && res.OK() {
		if cluster := condor.ClusterID(res.Output); cluster != "" {
			if err := st.SetClusterID(ctx, e.ID, cluster); err != nil {
				return err
			}
			e.ClusterID = cluster
		}
		if err := commandResult(condor.CmdSubmit, res); err != nil {
			return err
		}
		utils.PrintSuccess("Execution %s submitted to cluster %s", utils.StyleInfo(e.ID), utils.StyleNumber(e.ClusterID))
		return nil
	}

	reason := "submission failed"
	if err != nil {
		reason = err.Error()
	} else if out := strings.TrimSpace(res.Output); out != "" {
		reason = out
	}
	if _, ferr := st.Fire(ctx, e.ID, model.TransitionFail, reason); ferr != nil {
		utils.PrintWarning("Failed to record failure of execution %s: %v", e.ID, ferr)
	}
	if err != nil {
		return err
	}
	return &condor.CommandError{Command: condor.CmdSubmit, Result: res}
}
