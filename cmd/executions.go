package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

var (
	execStates  []string
	execWorkDir string
	execCluster string
	execReason  string
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"exec", "x"},
	Short:   "Manage tracked executions",
}

var executionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked executions",
	Example: `  condorweb executions list
  condorweb executions list --state queued --state running`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range execStates {
			if !model.IsState(s) {
				ExitWithError("Unknown state %q (expected one of %v)", s, model.States())
			}
		}
		st := openStore()
		defer st.Close()

		executions, err := st.List(cmd.Context(), execStates...)
		if err != nil {
			return err
		}
		if len(executions) == 0 {
			utils.PrintMessage("No executions found.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATE\tCLUSTER\tUPDATED\tREASON")
		for _, e := range executions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.Name, utils.StyleState(e.State), e.ClusterID,
				e.UpdatedAt.Local().Format("2006-01-02 15:04:05"), e.Reason)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		stats, err := st.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println()
		for _, s := range model.States() {
			if n := stats[s]; n > 0 {
				fmt.Printf("  %-10s %s\n", s+":", utils.StyleNumber(n))
			}
		}
		return nil
	},
}

var executionsAddCmd = &cobra.Command{
	Use:     "add <name>",
	Short:   "Track an execution submitted outside condorweb",
	Example: `  condorweb executions add nightly --cluster 4242 --workdir /data/nightly`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStore()
		defer st.Close()

		e := &model.Execution{Name: args[0], ClusterID: execCluster, WorkDir: execWorkDir}
		if err := st.Create(cmd.Context(), e); err != nil {
			return err
		}
		utils.PrintSuccess("Tracking execution %s (%s)", utils.StyleInfo(e.ID), utils.StyleName(e.Name))
		return nil
	},
}

var executionsFireCmd = &cobra.Command{
	Use:   "fire [id] <transition>",
	Short: "Fire a transition (start, complete, fail) on an execution",
	Long: `Fire a transition (start, complete, fail) on an execution.

Without an id, the execution named by $CONDORWEB_EXECUTION_ID is used. Tracked
jobs see that variable, so a job can report on itself.`,
	Example: `  condorweb executions fire 0b6f... start
  condorweb executions fire 0b6f... fail --reason "killed by operator"
  condorweb executions fire complete   # inside a tracked job`,
	Args: cobra.RangeArgs(1, 2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) <= 1 {
			return model.Transitions(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, transition, err := fireTarget(args, os.Getenv(executionIDEnv))
		if err != nil {
			return err
		}
		st := openStore()
		defer st.Close()

		e, err := st.Fire(cmd.Context(), id, transition, execReason)
		if err != nil {
			return err
		}
		utils.PrintSuccess("Execution %s is now %s", utils.StyleInfo(e.ID), utils.StyleState(e.State))
		return nil
	},
}

// fireTarget splits "fire" arguments into an execution id and a transition,
// falling back to envID when only the transition is given.
func fireTarget(args []string, envID string) (id, transition string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if envID == "" {
		return "", "", fmt.Errorf("no execution id given and %s is not set", executionIDEnv)
	}
	return envID, args[0], nil
}

func init() {
	executionsListCmd.Flags().StringSliceVarP(&execStates, "state", "s", nil, "Only show executions in these states")
	executionsAddCmd.Flags().StringVar(&execWorkDir, "workdir", "", "Working directory of the job")
	executionsAddCmd.Flags().StringVar(&execCluster, "cluster", "", "HTCondor cluster id")
	executionsFireCmd.Flags().StringVar(&execReason, "reason", "", "Reason recorded with the transition")

	executionsCmd.AddCommand(executionsListCmd, executionsAddCmd, executionsFireCmd)
	rootCmd.AddCommand(executionsCmd)
}
