package condor

import "os"

// ScratchDir returns the per-job scratch directory HTCondor exposes to running
// jobs. Its contents are deleted when the job leaves the execute machine.
// Outside a job it falls back to the system temporary directory.
func ScratchDir() string {
	if dir, ok := os.LookupEnv("_CONDOR_SCRATCH_DIR"); ok && dir != "" {
		return dir
	}
	return os.TempDir()
}

// IsInsideJob reports whether the current process runs as an HTCondor job.
func IsInsideJob() bool {
	_, inJob := os.LookupEnv("_CONDOR_JOB_AD")
	return inJob
}
