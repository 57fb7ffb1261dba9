package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// EnvPrefix is prepended to every environment override (CONDORWEB_CONDOR_ROOT, ...).
const EnvPrefix = "CONDORWEB"

// Keys is the list of known configuration keys.
var Keys = []string{
	"condor_root",
	"python",
	"db_path",
	"listen_addr",
	"reconcile_interval",
	"command_timeout",
	"max_output_bytes",
	"web.username",
	"web.password_hash",
	"web.remove_rate",
}

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (CONDORWEB_*), including a .env file in the working directory
// 3. User config file (~/.config/condorweb/config.yaml)
// 4. System config file (/etc/condorweb/config.yaml)
// 5. Defaults
func InitViper() error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	for _, dir := range SearchPaths() {
		viper.AddConfigPath(dir)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	utils.PrintDebug("Using config file: %s", utils.StylePath(viper.ConfigFileUsed()))
	return nil
}

// loadDotEnv exports the variables of an optional .env file. Variables that
// are already set in the environment win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	utils.PrintDebug("Loaded environment from %s", utils.StylePath(path))
	return nil
}

// SearchPaths lists the config directories in lookup order.
func SearchPaths() []string {
	var dirs []string
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(userConfigDir, "condorweb"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".condorweb"))
	}
	dirs = append(dirs, "/etc/condorweb", ".")
	return dirs
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("condor_root", "")
	viper.SetDefault("python", "python3")
	viper.SetDefault("db_path", DefaultDBPath())
	viper.SetDefault("listen_addr", "127.0.0.1:8080")
	viper.SetDefault("reconcile_interval", "5m")
	viper.SetDefault("command_timeout", "0")
	viper.SetDefault("max_output_bytes", "16M")

	viper.SetDefault("web.username", "")
	viper.SetDefault("web.password_hash", "")
	viper.SetDefault("web.remove_rate", 10.0)
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".condorweb", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "condorweb", ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves current Viper config to user config file
func SaveConfig() error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DetectPython resolves the interpreter on PATH, or returns "" when absent.
func DetectPython() string {
	for _, candidate := range []string{"python3", "python"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path
		}
	}
	return ""
}

// LoadFromViper loads config from Viper into Global struct. Values that fail
// to parse keep their defaults and produce a warning.
func LoadFromViper() {
	Global.CondorRoot = viper.GetString("condor_root")

	if py := viper.GetString("python"); py != "" {
		if resolved, err := exec.LookPath(py); err == nil {
			Global.Python = resolved
		} else {
			Global.Python = py
		}
	} else if detected := DetectPython(); detected != "" {
		Global.Python = detected
	}

	if dbPath := viper.GetString("db_path"); dbPath != "" {
		Global.DBPath = dbPath
	}
	if addr := viper.GetString("listen_addr"); addr != "" {
		Global.ListenAddr = addr
	}

	if raw := viper.GetString("reconcile_interval"); raw != "" {
		if dur, err := utils.ParseDuration(raw); err == nil && dur > 0 {
			Global.ReconcileInterval = dur
		} else {
			utils.PrintWarning("Ignoring reconcile_interval %q: must be a positive duration", raw)
		}
	}
	if raw := viper.GetString("command_timeout"); raw != "" {
		if dur, err := utils.ParseDuration(raw); err == nil {
			Global.CommandTimeout = dur
		} else {
			utils.PrintWarning("Ignoring command_timeout %q: %v", raw, err)
		}
	}
	if raw := viper.GetString("max_output_bytes"); raw != "" {
		if size, err := utils.ParseSize(raw); err == nil {
			Global.MaxOutputBytes = size
		} else {
			utils.PrintWarning("Ignoring max_output_bytes %q: %v", raw, err)
		}
	}

	Global.Web.Username = viper.GetString("web.username")
	Global.Web.PasswordHash = viper.GetString("web.password_hash")
	// 0 disables rate limiting; unparsable or negative values keep the default
	rate := strings.TrimSpace(viper.GetString("web.remove_rate"))
	if r, err := strconv.ParseFloat(rate, 64); err == nil && r >= 0 {
		Global.Web.RemoveRate = r
	}
}
