package config

import (
	"os"
	"path/filepath"
	"time"
)

const VERSION = "0.4.0"

// WebConfig holds settings for the status page.
type WebConfig struct {
	Username     string
	PasswordHash string  // bcrypt hash; empty disables authentication
	RemoveRate   float64 // condor_rm requests per minute per client, 0 for no limit
}

// Config holds global application settings
type Config struct {
	Debug   bool
	Version string

	CondorRoot string // installation prefix; binaries live in <CondorRoot>/bin
	Python     string // interpreter written as Executable= in submit files

	DBPath     string
	ListenAddr string

	ReconcileInterval time.Duration
	CommandTimeout    time.Duration // 0 means commands may block forever
	MaxOutputBytes    int64         // 0 disables the capture limit

	Web WebConfig
}

// Global holds the singleton configuration instance
var Global Config

// DefaultDBPath returns ~/.local/share/condorweb/executions.db, or a path in the
// working directory when the home directory is unknown.
func DefaultDBPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "condorweb", "executions.db")
	}
	return "executions.db"
}

// LoadDefaults resets Global to built-in values.
func LoadDefaults() {
	Global = Config{
		Debug:   false,
		Version: VERSION,

		CondorRoot: "",
		Python:     "python3",

		DBPath:     DefaultDBPath(),
		ListenAddr: "127.0.0.1:8080",

		ReconcileInterval: 5 * time.Minute,
		CommandTimeout:    0,
		MaxOutputBytes:    16 << 20,

		Web: WebConfig{
			RemoveRate: 10,
		},
	}
}
