package cmd

import (
	"strconv"
	"strings"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <job id>",
	Short: "Remove a job or cluster from the HTCondor queue (condor_rm)",
	Example: `  condorweb remove 1234
  condorweb rm 1234.0`,
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]
		if !validJobID(jobID) {
			ExitWithError("Invalid job id %q: expected <cluster> or <cluster>.<proc>", jobID)
		}
		res := newClient().Remove(cmd.Context(), jobID)
		if err := commandResult(condor.CmdRemove, res); err != nil {
			return err
		}
		utils.PrintSuccess("Removal of %s requested", utils.StyleInfo(jobID))
		return nil
	},
}

// validJobID accepts "<cluster>" and "<cluster>.<proc>" with non-negative numbers.
func validJobID(id string) bool {
	cluster, proc, hasProc := strings.Cut(id, ".")
	if !isUint(cluster) {
		return false
	}
	return !hasProc || isUint(proc)
}

func isUint(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
