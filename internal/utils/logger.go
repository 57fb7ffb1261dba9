package utils

import (
	"fmt"
	"sync"
)

// Logger is the logging surface handed to long-lived components.
type Logger interface {
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Errorf(format string, a ...interface{})
}

// Console is a Logger writing through the package printers.
type Console struct{}

func (Console) Debugf(format string, a ...interface{}) { PrintDebug(format, a...) }
func (Console) Infof(format string, a ...interface{})  { PrintNote(format, a...) }
func (Console) Errorf(format string, a ...interface{}) { PrintError(format, a...) }

// Entry is one line captured by a RecordingLogger.
type Entry struct {
	Level   string
	Message string
}

// RecordingLogger keeps every message in memory. Used by tests.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *RecordingLogger) add(level, format string, a ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, a...)})
}

func (r *RecordingLogger) Debugf(format string, a ...interface{}) { r.add("debug", format, a...) }
func (r *RecordingLogger) Infof(format string, a ...interface{})  { r.add("info", format, a...) }
func (r *RecordingLogger) Errorf(format string, a ...interface{}) { r.add("error", format, a...) }

// Entries returns a copy of the captured lines, optionally filtered by level.
func (r *RecordingLogger) Entries(level string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
