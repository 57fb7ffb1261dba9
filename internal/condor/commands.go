// Package condor drives an HTCondor pool through its command-line tools.
package condor

import (
	"os/exec"
	"path/filepath"
	"runtime"
)

// Command names, without any platform suffix.
const (
	CmdSubmit  = "condor_submit"
	CmdDAG     = "condor_submit_dag"
	CmdQueue   = "condor_q"
	CmdRemove  = "condor_rm"
	CmdStatus  = "condor_status"
	CmdVersion = "condor_version"
)

// executableName adds the platform executable suffix.
func executableName(goos, cmd string) string {
	if goos == "windows" {
		return cmd + ".exe"
	}
	return cmd
}

// BinDir returns the directory holding the condor executables for a given
// installation root, or "" when the root is not configured.
func BinDir(condorRoot string) string {
	if condorRoot == "" {
		return ""
	}
	return filepath.Join(condorRoot, "bin")
}

// commandPath resolves cmd inside binDir, or on PATH when binDir is empty.
// An unresolvable command is returned bare and will be reported missing.
func commandPath(binDir, cmd string) string {
	exe := executableName(runtime.GOOS, cmd)
	if binDir != "" {
		return filepath.Join(binDir, exe)
	}
	if path, err := exec.LookPath(exe); err == nil {
		return path
	}
	return exe
}
