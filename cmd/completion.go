package cmd

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// detectShell auto-detects the current shell from environment
func detectShell() string {
	shell := strings.ToLower(os.Getenv("SHELL"))
	switch {
	case strings.Contains(shell, "fish"):
		return "fish"
	case strings.Contains(shell, "zsh"):
		return "zsh"
	case strings.Contains(shell, "pwsh"), strings.Contains(shell, "powershell"):
		return "powershell"
	}
	return "bash"
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for condorweb.

If no shell is specified, it is auto-detected from $SHELL.

Bash:
  $ source <(condorweb completion bash)

Zsh:
  $ condorweb completion zsh > "${fpath[1]}/_condorweb"

Fish:
  $ condorweb completion fish > ~/.config/fish/completions/condorweb.fish

PowerShell:
  PS> condorweb completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := detectShell()
		if len(args) > 0 {
			shell = args[0]
		}

		switch shell {
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		var buf bytes.Buffer
		if err := cmd.Root().GenBashCompletionV2(&buf, true); err != nil {
			return err
		}
		_, err := os.Stdout.WriteString(postProcessBashCompletion(buf.String()))
		return err
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// postProcessBashCompletion falls back to file completion once "--" has been
// typed, so interpreter arguments of "submit" complete as paths.
func postProcessBashCompletion(script string) string {
	oldCode := `args=("${words[@]:1}")
    requestComp="${words[0]} __complete ${args[*]}"`

	newCode := `args=("${words[@]:1}")
    for word in "${words[@]}"; do
        if [[ "$word" == "--" ]]; then
            return
        fi
    done
    requestComp="${words[0]} __complete ${args[*]}"`

	return strings.Replace(script, oldCode, newCode, 1)
}
