// Package store persists execution records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// ErrNotFound is returned when no execution has the requested id.
var ErrNotFound = errors.New("execution not found")

const schema = `create table if not exists executions(
	id text primary key,
	name text not null,
	state text not null default 'queued',
	reason text not null default '',
	cluster_id text not null default '',
	work_dir text not null default '',
	created_at DATETIME not null,
	updated_at DATETIME not null
);
create index if not exists executions_state on executions(state);`

const columns = `id, name, state, reason, cluster_id, work_dir, created_at, updated_at`

// Store is a SQLite-backed execution repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts e. Missing ID, state and timestamps are filled in.
func (s *Store) Create(ctx context.Context, e *model.Execution) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.State == "" {
		e.State = model.StateQueued
	}
	if !model.IsState(e.State) {
		return fmt.Errorf("unknown state %q", e.State)
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`insert into executions (`+columns+`) values (?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, e.State, e.Reason, e.ClusterID, e.WorkDir, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution %s: %w", e.Name, err)
	}
	return nil
}

// Get returns the execution with the given id.
func (s *Store) Get(ctx context.Context, id string) (*model.Execution, error) {
	return get(ctx, s.db, id)
}

// List returns executions in creation order, restricted to states when any are given.
func (s *Store) List(ctx context.Context, states ...string) ([]model.Execution, error) {
	return list(ctx, s.db, states...)
}

// Stats counts executions per state.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `select state, count(*) from executions group by state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// SetClusterID records the condor cluster an execution was submitted to.
func (s *Store) SetClusterID(ctx context.Context, id, clusterID string) error {
	res, err := s.db.ExecContext(ctx,
		`update executions set cluster_id = ?, updated_at = ? where id = ?`,
		clusterID, s.now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Fire applies a transition to one execution in its own transaction.
func (s *Store) Fire(ctx context.Context, id, transition, reason string) (*model.Execution, error) {
	sess, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	e, err := sess.fire(ctx, id, transition, reason)
	if err != nil {
		return nil, err
	}
	if err := sess.Commit(); err != nil {
		return nil, err
	}
	return e, nil
}

// Begin opens a session whose transitions become visible on Commit.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Session{tx: tx, now: s.now}, nil
}

// Session groups transitions into one atomic commit.
type Session struct {
	tx  *sql.Tx
	now func() time.Time
}

// ActiveExecutions returns queued and running executions.
func (sess *Session) ActiveExecutions(ctx context.Context) ([]model.Execution, error) {
	return list(ctx, sess.tx, model.ActiveStates()...)
}

// Fire applies a transition inside the session.
func (sess *Session) Fire(ctx context.Context, id, transition, reason string) error {
	_, err := sess.fire(ctx, id, transition, reason)
	return err
}

func (sess *Session) fire(ctx context.Context, id, transition, reason string) (*model.Execution, error) {
	e, err := get(ctx, sess.tx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Fire(transition, reason, sess.now()); err != nil {
		return nil, fmt.Errorf("execution %s: %w", id, err)
	}
	_, err = sess.tx.ExecContext(ctx,
		`update executions set state = ?, reason = ?, updated_at = ? where id = ?`,
		e.State, e.Reason, e.UpdatedAt, e.ID)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Commit makes the session's transitions durable.
func (sess *Session) Commit() error {
	return sess.tx.Commit()
}

// Rollback discards the session. It is a no-op after Commit.
func (sess *Session) Rollback() error {
	if err := sess.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*model.Execution, error) {
	var e model.Execution
	if err := row.Scan(&e.ID, &e.Name, &e.State, &e.Reason, &e.ClusterID, &e.WorkDir, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func get(ctx context.Context, q querier, id string) (*model.Execution, error) {
	row := q.QueryRowContext(ctx, `select `+columns+` from executions where id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

func list(ctx context.Context, q querier, states ...string) ([]model.Execution, error) {
	query := `select ` + columns + ` from executions`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` where state in (?` + strings.Repeat(",?", len(states)-1) + `)`
		for _, s := range states {
			args = append(args, s)
		}
	}
	query += ` order by created_at, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := []model.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}
