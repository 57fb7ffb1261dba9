package condor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// submitTemplate describes a vanilla-universe Python job.
const submitTemplate = `Universe=vanilla
Executable=%s
Arguments=%s
Transfer_executable = False
Run_as_owner=True
InitialDir=%s
Log=%s
Error=%s
getenv=True
Queue
`

// JobParams holds the per-job values of a submit description.
type JobParams struct {
	Name             string // used for the submit file name
	WorkingDirectory string
	LogFile          string // condor user log
	Stderr           string
}

func (p JobParams) validate() error {
	switch {
	case strings.TrimSpace(p.WorkingDirectory) == "":
		return &ValidationError{Field: "WorkingDirectory", Reason: "must not be empty"}
	case strings.TrimSpace(p.LogFile) == "":
		return &ValidationError{Field: "LogFile", Reason: "must not be empty"}
	case strings.TrimSpace(p.Stderr) == "":
		return &ValidationError{Field: "Stderr", Reason: "must not be empty"}
	}
	for field, v := range map[string]string{
		"WorkingDirectory": p.WorkingDirectory, "LogFile": p.LogFile, "Stderr": p.Stderr,
	} {
		if strings.ContainsAny(v, "\r\n") {
			return &ValidationError{Field: field, Reason: "must be a single line"}
		}
	}
	return nil
}

// RenderSubmitDescription fills the submit template for running python with args.
func RenderSubmitDescription(python string, args []string, params JobParams) (string, error) {
	if err := params.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf(submitTemplate,
		python,
		QuoteArguments(args),
		params.WorkingDirectory,
		params.LogFile,
		params.Stderr,
	), nil
}

// SubmitFilePath returns <workdir>/<name>.<operation>.submit.
func SubmitFilePath(params JobParams, operation string) string {
	return filepath.Join(params.WorkingDirectory, fmt.Sprintf("%s.%s.submit", params.Name, operation))
}

// WriteSubmitFile writes the description for a job into its working
// directory, replacing any previous file, and returns the path.
func WriteSubmitFile(python string, args []string, params JobParams, operation string) (string, error) {
	if strings.TrimSpace(params.Name) == "" {
		return "", &ValidationError{Field: "Name", Reason: "must not be empty"}
	}
	desc, err := RenderSubmitDescription(python, args, params)
	if err != nil {
		return "", err
	}

	path := SubmitFilePath(params, operation)
	if utils.FileExists(path) {
		if err := os.Remove(path); err != nil {
			return "", NewSubmitFileError(params.Name, path, err)
		}
	}
	if err := os.WriteFile(path, []byte(desc), utils.PermFile); err != nil {
		return "", NewSubmitFileError(params.Name, path, err)
	}
	utils.PrintDebug("Wrote submit file %s", utils.StylePath(path))
	return path, nil
}
