package cmd

import (
	"fmt"

	"github.com/gurneyalex/cubicweb-condor/internal/config"
	"github.com/gurneyalex/cubicweb-condor/internal/reconcile"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

var (
	reconcileWatch    bool
	reconcileInterval string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fail executions that disappeared from the HTCondor queue",
	Long: `Compare tracked executions with the live HTCondor queue.

When the queue is empty, queued and running executions are marked suspicious.
An execution still suspicious on the next pass is moved to the failed state.
A single pass can therefore never fail anything: run it periodically, or use
--watch to keep running.`,
	Example: `  condorweb reconcile
  condorweb reconcile --watch --interval 2m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		st := openStore()
		defer st.Close()
		rec := newReconciler(client, st)

		if !reconcileWatch {
			report, err := rec.Run(cmd.Context())
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		}

		interval := config.Global.ReconcileInterval
		if reconcileInterval != "" {
			d, err := utils.ParseDuration(reconcileInterval)
			if err != nil || d <= 0 {
				ExitWithError("Invalid interval %q", reconcileInterval)
			}
			interval = d
		}

		ctx, cancel := signalContext()
		defer cancel()
		utils.PrintMessage("Reconciling every %s. Press Ctrl+C to stop.", utils.StyleInfo(interval.String()))
		rec.Loop(ctx, interval)
		return nil
	},
}

func printReport(report reconcile.Report) {
	fmt.Println("Reconciliation:")
	if !report.QueueEmpty {
		fmt.Printf("  Queue:      %s\n", utils.StyleSuccess("jobs waiting, nothing to do"))
		return
	}
	fmt.Printf("  Queue:      %s\n", utils.StyleWarning("empty"))
	fmt.Printf("  Suspicious: %s\n", utils.StyleNumber(len(report.Suspicious)))
	for _, id := range report.Suspicious {
		fmt.Printf("    %s\n", id)
	}
	fmt.Printf("  Failed:     %s\n", utils.StyleNumber(len(report.Failed)))
	for _, id := range report.Failed {
		fmt.Printf("    %s\n", utils.StyleError(id))
	}
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileWatch, "watch", false, "Keep reconciling periodically")
	reconcileCmd.Flags().StringVar(&reconcileInterval, "interval", "", "Interval between passes (default: reconcile_interval)")
	rootCmd.AddCommand(reconcileCmd)
}
