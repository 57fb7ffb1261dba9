package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/config"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/gurneyalex/cubicweb-condor/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configKeysCompletion returns config keys for shell completion
func configKeysCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.Keys, cobra.ShellCompDirectiveNoFileComp
	}
	if len(args) == 1 {
		return configValueCompletion(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// configValueCompletion returns suggested values for a config key
func configValueCompletion(key string) []string {
	switch key {
	case "reconcile_interval":
		return []string{"1m", "5m", "15m", "1h"}
	case "command_timeout":
		return []string{"0", "30s", "2m", "10m"}
	case "max_output_bytes":
		return []string{"1M", "16M", "64M", "0"}
	case "web.remove_rate":
		return []string{"5", "10", "30"}
	case "python":
		return []string{"python3", "python"}
	default:
		return nil
	}
}

// validateConfigValue rejects values LoadFromViper would ignore.
func validateConfigValue(key, value string) error {
	switch key {
	case "reconcile_interval":
		d, err := utils.ParseDuration(value)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("reconcile_interval must be positive")
		}
	case "command_timeout":
		if _, err := utils.ParseDuration(value); err != nil {
			return err
		}
	case "max_output_bytes":
		if _, err := utils.ParseSize(value); err != nil {
			return err
		}
	case "web.remove_rate":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", value)
		}
		if r < 0 {
			return fmt.Errorf("web.remove_rate must not be negative")
		}
	case "web.password_hash":
		if value != "" && !strings.HasPrefix(value, "$2") {
			return fmt.Errorf("web.password_hash must be a bcrypt hash (see 'condorweb config hash-password')")
		}
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage condorweb configuration",
	Long: `Manage condorweb configuration settings.

Configuration priority (highest to lowest):
  1. Command-line flags (--condor-root, --db)
  2. Environment variables (CONDORWEB_*), including a .env file in the current directory
  3. Config file (first found of the "config path" search list)
  4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(utils.StyleTitle("Config File:"))
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("  %s\n", utils.StylePath(used))
		} else {
			fmt.Printf("  %s (use 'condorweb config set' to create one)\n", utils.StyleWarning("No config file found"))
		}
		fmt.Println()

		g := config.Global
		fmt.Println(utils.StyleTitle("HTCondor:"))
		fmt.Printf("  condor_root:        %s\n", valueOrNone(g.CondorRoot))
		fmt.Printf("  python:             %s\n", g.Python)
		fmt.Printf("  command_timeout:    %s\n", g.CommandTimeout)
		fmt.Printf("  max_output_bytes:   %s\n", utils.FormatBytes(g.MaxOutputBytes))
		fmt.Println()

		fmt.Println(utils.StyleTitle("Executions:"))
		fmt.Printf("  db_path:            %s\n", g.DBPath)
		fmt.Printf("  reconcile_interval: %s\n", g.ReconcileInterval)
		fmt.Println()

		fmt.Println(utils.StyleTitle("Web:"))
		fmt.Printf("  listen_addr:        %s\n", g.ListenAddr)
		fmt.Printf("  web.username:       %s\n", valueOrNone(g.Web.Username))
		if g.Web.PasswordHash != "" {
			fmt.Printf("  web.password_hash:  %s\n", utils.StyleSuccess("(set)"))
		} else {
			fmt.Printf("  web.password_hash:  %s\n", utils.StyleWarning("(not set, authentication disabled)"))
		}
		fmt.Printf("  web.remove_rate:    %g/min\n", g.Web.RemoveRate)
		fmt.Println()

		fmt.Println(utils.StyleTitle("Environment Variable Overrides:"))
		hasEnvOverrides := false
		for _, envVar := range config.EnvVars() {
			if val, ok := os.LookupEnv(envVar); ok {
				if envVar == config.EnvVarFor("web.password_hash") {
					val = "****"
				}
				fmt.Printf("  %s=%s\n", envVar, val)
				hasEnvOverrides = true
			}
		}
		if !hasEnvOverrides {
			fmt.Printf("  %s\n", utils.StyleInfo("none"))
		}
	},
}

func valueOrNone(v string) string {
	if v == "" {
		return utils.StyleInfo("none")
	}
	return v
}

var configGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Get a configuration value",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: configKeysCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		if !config.IsKnownKey(key) {
			ExitWithError("Unknown config key: %s", key)
		}
		fmt.Println(viper.Get(key))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the user config file.

Duration format (reconcile_interval, command_timeout):
  Go style:  2m, 30s, 1h30m
  HPC style: 00:05:00, 1:30 (HH:MM:SS or HH:MM)

Size format (max_output_bytes): 512K, 16M, 1G or a byte count; 0 disables the limit.`,
	Example: `  condorweb config set condor_root /opt/condor
  condorweb config set reconcile_interval 2m
  condorweb config set web.username admin`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeysCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]

		if !config.IsKnownKey(key) {
			utils.PrintWarning("Warning: '%s' is not a standard config key", key)
		}
		if err := validateConfigValue(key, value); err != nil {
			utils.PrintError("Invalid value for %s: %v", key, err)
			os.Exit(1)
		}

		viper.Set(key, value)
		if err := config.SaveConfig(); err != nil {
			ExitWithError("Failed to save config: %v", err)
		}

		configPath, _ := config.GetUserConfigPath()
		shown := value
		if key == "web.password_hash" {
			shown = "****"
		}
		utils.PrintSuccess("Set %s = %s", utils.StyleInfo(key), utils.StyleInfo(shown))
		utils.PrintNote("Config saved to: %s", configPath)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file locations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		userPath, err := config.GetUserConfigPath()
		if err != nil {
			ExitWithError("Failed to get config path: %v", err)
		}
		used := viper.ConfigFileUsed()

		fmt.Println(utils.StyleTitle("Config File Search Paths:"))
		for i, dir := range config.SearchPaths() {
			path := filepath.Join(dir, config.ConfigFilename+"."+config.ConfigType)
			status := ""
			if used != "" && sameFile(path, used) {
				status = " " + utils.StyleSuccess("← in use")
			} else if utils.FileExists(path) {
				status = " " + utils.StyleInfo("(exists)")
			}
			fmt.Printf("  %d. %s%s\n", i+1, path, status)
		}
		fmt.Println()
		fmt.Printf("User config (written by 'config set'): %s\n", utils.StylePath(userPath))
	},
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit config file in default editor",
	Long:  "Open the user configuration file in your default text editor ($EDITOR)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			ExitWithError("Failed to get config path: %v", err)
		}

		if !utils.FileExists(configPath) {
			utils.PrintNote("Config file doesn't exist, creating it first...")
			if err := config.SaveConfig(); err != nil {
				ExitWithError("Failed to create config: %v", err)
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		editorCmd := exec.Command(editor, configPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			ExitWithError("Failed to open editor: %v", err)
		}
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Check that the condor commands, the python interpreter and the database directory are usable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		valid := true
		fmt.Println(utils.StyleTitle("Validating configuration..."))
		fmt.Println()

		client := newClient()
		for _, name := range []string{condor.CmdSubmit, condor.CmdDAG, condor.CmdQueue, condor.CmdRemove, condor.CmdStatus} {
			path := client.CommandPath(name)
			if utils.FileExists(path) {
				fmt.Printf("%s %s: %s\n", utils.StyleSuccess("✓"), name, path)
			} else {
				fmt.Printf("%s %s not found: %s\n", utils.StyleError("✗"), name, path)
				valid = false
			}
		}

		if _, err := exec.LookPath(config.Global.Python); err == nil {
			fmt.Printf("%s Python: %s\n", utils.StyleSuccess("✓"), config.Global.Python)
		} else {
			fmt.Printf("%s Python not found: %s\n", utils.StyleError("✗"), config.Global.Python)
			valid = false
		}

		dbDir := filepath.Dir(config.Global.DBPath)
		if err := utils.EnsureDir(dbDir); err == nil {
			fmt.Printf("%s Database directory: %s\n", utils.StyleSuccess("✓"), dbDir)
		} else {
			fmt.Printf("%s Database directory not usable: %v\n", utils.StyleError("✗"), err)
			valid = false
		}

		if config.Global.Web.PasswordHash == "" {
			fmt.Printf("%s Web authentication: %s\n", utils.StyleWarning("⚠"), "disabled")
		}

		fmt.Println()
		if !valid {
			ExitWithError("Configuration has errors")
		}
		utils.PrintSuccess("Configuration is valid")
	},
}

var configHashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Read a password on stdin and print its bcrypt hash",
	Example: `  echo 's3cret' | condorweb config hash-password
  condorweb config set web.password_hash "$(condorweb config hash-password < pw.txt)"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if utils.IsInteractiveShell() {
			fmt.Fprint(os.Stderr, "Password: ")
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return fmt.Errorf("empty password")
		}
		hash, err := web.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configHashPasswordCmd)

	rootCmd.AddCommand(configCmd)
}
