package cmd

import (
	"fmt"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

var queueIDsOnly bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the HTCondor queue (condor_q)",
	Example: `  condorweb queue
  condorweb queue --ids`,
	Aliases: []string{"q"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if !queueIDsOnly {
			return commandResult(condor.CmdQueue, client.Queue(cmd.Context()))
		}
		for _, id := range client.JobIDs(cmd.Context()) {
			fmt.Fprintln(utils.Stdout, id)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the HTCondor pool status (condor_status)",
	Example: `  condorweb status`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return commandResult(condor.CmdStatus, newClient().Status(cmd.Context()))
	},
}

func init() {
	queueCmd.Flags().BoolVar(&queueIDsOnly, "ids", false, "Print only the job ids found in the queue")
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(statusCmd)
}
