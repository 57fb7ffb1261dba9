package cmd

import (
	"fmt"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display HTCondor installation information",
	Long: `Display information about the HTCondor installation used by condorweb.

Shows the command directory, version, whether the queue is reachable and,
when it is, the largest execute node and the GPUs advertised in the pool.`,
	Example: `  condorweb info
  condorweb info --condor-root /opt/condor`,
	Args: cobra.NoArgs,
	Run:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) {
	client := newClient()
	ctx := cmd.Context()
	info := client.Info(ctx)

	// Structured output, no [CW] prefix
	fmt.Println("HTCondor Information:")
	if info.BinDir != "" {
		fmt.Printf("  Bin Dir:   %s\n", utils.StylePath(info.BinDir))
	} else {
		fmt.Printf("  Bin Dir:   %s\n", utils.StyleInfo("(PATH)"))
	}
	fmt.Printf("  Submit:    %s\n", utils.StylePath(info.Submit))
	fmt.Printf("  Python:    %s\n", utils.StylePath(client.Python()))

	if info.Version != "" {
		version := utils.StyleNumber(info.Version)
		if !info.Supported {
			version += " " + utils.StyleWarning(fmt.Sprintf("(older than %s)", condor.MinimumVersion))
		}
		fmt.Printf("  Version:   %s\n", version)
	} else {
		fmt.Printf("  Version:   %s\n", utils.StyleError("unknown"))
	}

	if info.InJob {
		fmt.Printf("  Job:       %s\n", utils.StyleWarning("running inside an HTCondor job"))
		fmt.Printf("  Scratch:   %s\n", utils.StylePath(condor.ScratchDir()))
	}

	if !info.Reachable {
		fmt.Printf("  Status:    %s\n", utils.StyleError("Unavailable"))
		fmt.Println()
		fmt.Println("condor_q failed. Check the installation and the condor_root setting.")
		return
	}
	fmt.Printf("  Status:    %s\n", utils.StyleSuccess("Available"))

	cluster, err := client.ClusterInfo(ctx)
	if err != nil {
		utils.PrintDebug("cluster information unavailable: %v", err)
		return
	}
	if cluster.MaxCpusPerNode > 0 || cluster.MaxMemMBPerNode > 0 {
		fmt.Println()
		fmt.Println("Largest Node:")
		fmt.Printf("  CPUs:      %s\n", utils.StyleNumber(cluster.MaxCpusPerNode))
		fmt.Printf("  Memory:    %s\n", utils.StyleNumber(utils.FormatBytes(cluster.MaxMemMBPerNode<<20)))
	}
	if len(cluster.Gpus) > 0 {
		fmt.Println()
		fmt.Println("Available GPUs:")
		for _, gpu := range cluster.Gpus {
			fmt.Printf("  %s: %d\n", utils.StyleName(gpu.Machine), gpu.Total)
		}
	}
}
