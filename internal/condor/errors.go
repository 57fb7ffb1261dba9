package condor

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrCommandNotFound indicates a condor binary is missing on disk
	ErrCommandNotFound = errors.New("condor command not found")

	// ErrVersionParseFailed indicates condor_version printed something unexpected
	ErrVersionParseFailed = errors.New("failed to parse condor version")
)

// ValidationError reports a job description field that cannot be submitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid job parameter %s: %s", e.Field, e.Reason)
}

// SubmitFileError represents an error writing a submit description file
type SubmitFileError struct {
	JobName string // Job name
	Path    string // Submit file path
	Err     error  // Underlying error
}

func (e *SubmitFileError) Error() string {
	return fmt.Sprintf("failed to write submit file for job %s at %s: %v",
		e.JobName, e.Path, e.Err)
}

func (e *SubmitFileError) Unwrap() error {
	return e.Err
}

// CommandError is returned by queries that need a successful run to make sense
// of the output (version, cluster information).
type CommandError struct {
	Command string
	Result  Result
}

func (e *CommandError) Error() string {
	out := e.Result.Output
	if len(out) > 200 {
		out = out[:200] + "..."
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.Result.ExitCode, out)
}

// Unwrap maps a missing binary onto ErrCommandNotFound.
func (e *CommandError) Unwrap() error {
	if e.Result.Missing {
		return ErrCommandNotFound
	}
	return nil
}

// NewSubmitFileError creates a new SubmitFileError
func NewSubmitFileError(jobName string, path string, err error) *SubmitFileError {
	return &SubmitFileError{
		JobName: jobName,
		Path:    path,
		Err:     err,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSubmitFileError checks if an error is a SubmitFileError
func IsSubmitFileError(err error) bool {
	var se *SubmitFileError
	return errors.As(err, &se)
}
