// Package model defines the execution records tracked alongside condor jobs.
package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

const (
	TransitionStart    = "start"
	TransitionComplete = "complete"
	TransitionFail     = "fail"
)

// ErrInvalidTransition is returned when a transition is unknown or not
// allowed from the current state.
var ErrInvalidTransition = errors.New("invalid transition")

// Execution is one tracked run of a condor job.
type Execution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	ClusterID string    `json:"cluster_id,omitempty"`
	WorkDir   string    `json:"work_dir,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var transitions = map[string]struct {
	from []string
	to   string
}{
	TransitionStart:    {from: []string{StateQueued}, to: StateRunning},
	TransitionComplete: {from: []string{StateRunning}, to: StateCompleted},
	TransitionFail:     {from: []string{StateQueued, StateRunning}, to: StateFailed},
}

// States lists every execution state.
func States() []string {
	return []string{StateQueued, StateRunning, StateCompleted, StateFailed}
}

// ActiveStates are the states watched by the stale execution reconciler.
func ActiveStates() []string {
	return []string{StateQueued, StateRunning}
}

// Transitions lists the transition names.
func Transitions() []string {
	return []string{TransitionStart, TransitionComplete, TransitionFail}
}

// IsState reports whether s is a known state.
func IsState(s string) bool {
	for _, state := range States() {
		if s == state {
			return true
		}
	}
	return false
}

// Next returns the state reached by firing transition from state.
func Next(state, transition string) (string, error) {
	t, ok := transitions[transition]
	if !ok {
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, transition)
	}
	for _, from := range t.from {
		if from == state {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, transition, state)
}

// Fire applies transition to e, recording reason and the update time.
func (e *Execution) Fire(transition, reason string, now time.Time) error {
	next, err := Next(e.State, transition)
	if err != nil {
		return err
	}
	e.State = next
	e.Reason = reason
	e.UpdatedAt = now
	return nil
}

// Active reports whether the execution is queued or running.
func (e *Execution) Active() bool {
	return e.State == StateQueued || e.State == StateRunning
}
