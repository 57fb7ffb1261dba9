package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

var dagNoTrack bool

var submitDagCmd = &cobra.Command{
	Use:   "submit-dag <dag file>",
	Short: "Submit a DAG to HTCondor",
	Long: `Submit a DAG description with condor_submit_dag -force.

The DAG is recorded as an execution named after the file unless --no-track is
given. DAGMan and its nodes see the execution id as $CONDORWEB_EXECUTION_ID.`,
	Example: `  condorweb submit-dag pipeline.dag`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dagFile, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if !utils.FileExists(dagFile) {
			ExitWithError("DAG file %s does not exist", utils.StylePath(dagFile))
		}

		client := newClient()
		if dagNoTrack {
			return commandResult(condor.CmdDAG, client.SubmitDAG(cmd.Context(), dagFile))
		}

		st := openStore()
		defer st.Close()
		e := &model.Execution{
			Name:    strings.TrimSuffix(filepath.Base(dagFile), filepath.Ext(dagFile)),
			WorkDir: filepath.Dir(dagFile),
		}
		return submitTracked(cmd.Context(), st, func(ctx context.Context, env []string) (condor.Result, error) {
			return client.SubmitDAG(ctx, dagFile, env...), nil
		}, e)
	},
}

func init() {
	submitDagCmd.Flags().BoolVar(&dagNoTrack, "no-track", false, "Do not record an execution for this DAG")
	rootCmd.AddCommand(submitDagCmd)
}
