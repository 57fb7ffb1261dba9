// Package reconcile fails tracked executions that HTCondor no longer knows
// about.
//
// A pass only acts when the live queue is empty. Each queued or running
// execution is first marked suspicious; if the next pass still finds the
// queue empty and the execution still active, the execution is failed.
// Any non-empty queue clears the suspicious set.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/store"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// FailReason is recorded on executions failed by the reconciler.
const FailReason = "something failed, probably in Condor"

// Queue lists the job ids currently known to condor.
type Queue interface {
	JobIDs(ctx context.Context) []string
}

// Session is a unit of work over the tracked executions.
type Session interface {
	ActiveExecutions(ctx context.Context) ([]model.Execution, error)
	Fire(ctx context.Context, id, transition, reason string) error
	Commit() error
	Rollback() error
}

// Repository opens sessions.
type Repository interface {
	Begin(ctx context.Context) (Session, error)
}

type storeRepository struct {
	st *store.Store
}

func (r storeRepository) Begin(ctx context.Context) (Session, error) {
	sess, err := r.st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// FromStore exposes a store.Store as a Repository.
func FromStore(st *store.Store) Repository {
	return storeRepository{st: st}
}

// Report summarises one pass.
type Report struct {
	QueueEmpty bool     `json:"queue_empty"`
	Suspicious []string `json:"suspicious"`
	Failed     []string `json:"failed"`
}

// Reconciler holds the suspicious set between passes.
type Reconciler struct {
	queue Queue
	lock  sync.Locker
	repo  Repository
	log   utils.Logger

	now func() time.Time

	// guarded by lock
	candidates map[string]struct{}
	lastPass   time.Time
}

// New creates a Reconciler. lock must be the lock taken by submissions.
func New(queue Queue, lock sync.Locker, repo Repository, log utils.Logger) *Reconciler {
	if log == nil {
		log = utils.Console{}
	}
	return &Reconciler{
		queue:      queue,
		lock:       lock,
		repo:       repo,
		log:        log,
		now:        time.Now,
		candidates: make(map[string]struct{}),
	}
}

// Run performs one pass.
func (r *Reconciler) Run(ctx context.Context) (report Report, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.lastPass = r.now()
	report = Report{Suspicious: []string{}, Failed: []string{}}

	if jobs := r.queue.JobIDs(ctx); len(jobs) > 0 {
		r.log.Debugf("Jobs waiting in queue, clearing suspicious job list")
		clear(r.candidates)
		return report, nil
	}
	report.QueueEmpty = true

	if len(r.candidates) > 0 {
		r.log.Infof("Suspicious executions: %v", sortedKeys(r.candidates))
	}

	saved := make(map[string]struct{}, len(r.candidates))
	for id := range r.candidates {
		saved[id] = struct{}{}
	}
	defer func() {
		if err != nil {
			r.candidates = saved
			report = Report{QueueEmpty: true, Suspicious: []string{}, Failed: []string{}}
		}
	}()

	sess, err := r.repo.Begin(ctx)
	if err != nil {
		return report, err
	}
	defer sess.Rollback()

	executions, err := sess.ActiveExecutions(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active executions: %w", err)
	}

	for _, e := range executions {
		if _, ok := r.candidates[e.ID]; ok {
			delete(r.candidates, e.ID)
			r.log.Errorf("forcing transition %s on execution %s", model.TransitionFail, e.ID)
			if err := sess.Fire(ctx, e.ID, model.TransitionFail, FailReason); err != nil {
				return report, fmt.Errorf("failed to fail execution %s: %w", e.ID, err)
			}
			report.Failed = append(report.Failed, e.ID)
			continue
		}
		r.log.Infof("found suspicious execution %s", e.ID)
		r.candidates[e.ID] = struct{}{}
		report.Suspicious = append(report.Suspicious, e.ID)
	}

	if err := sess.Commit(); err != nil {
		return report, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return report, nil
}

// Loop runs a pass every interval until ctx is cancelled. Failed passes are
// logged and retried on the next tick.
func (r *Reconciler) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debugf("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				r.log.Errorf("reconciliation failed: %v", err)
			}
		}
	}
}

// Candidates returns the suspicious execution ids, sorted.
func (r *Reconciler) Candidates() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return sortedKeys(r.candidates)
}

// LastPass returns when the latest pass started, zero before the first one.
func (r *Reconciler) LastPass() time.Time {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.lastPass
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
