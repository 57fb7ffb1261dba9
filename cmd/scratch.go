package cmd

import (
	"fmt"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/spf13/cobra"
)

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "Print the job scratch directory",
	Long: `Print the per-job scratch directory ($_CONDOR_SCRATCH_DIR).

HTCondor deletes its contents when the job leaves the execute machine.
Outside a job the system temporary directory is printed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(condor.ScratchDir())
	},
}

func init() {
	rootCmd.AddCommand(scratchCmd)
}
