package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurneyalex/cubicweb-condor/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "executions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := &model.Execution{Name: "train", WorkDir: "/data/train"}
	require.NoError(t, s.Create(ctx, e))

	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err, "generated id should be a uuid")
	assert.Equal(t, model.StateQueued, e.State)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.WorkDir, got.WorkDir)
	assert.Equal(t, model.StateQueued, got.State)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
}

func TestCreateRejectsUnknownState(t *testing.T) {
	s := openTestStore(t)
	err := s.Create(context.Background(), &model.Execution{Name: "x", State: "pending"})
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, e := range []*model.Execution{
		{Name: "a"},
		{Name: "b", State: model.StateRunning},
		{Name: "c", State: model.StateCompleted},
		{Name: "d"},
	} {
		require.NoError(t, s.Create(ctx, e))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "d", all[3].Name)

	active, err := s.List(ctx, model.ActiveStates()...)
	require.NoError(t, err)
	var names []string
	for _, e := range active {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a", "b", "d"}, names)

	none, err := s.List(ctx, model.StateFailed)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"queued": 2, "running": 1, "completed": 1}, stats)
}

func TestFire(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := &model.Execution{Name: "job"}
	require.NoError(t, s.Create(ctx, e))

	got, err := s.Fire(ctx, e.ID, model.TransitionStart, "picked up")
	require.NoError(t, err)
	assert.Equal(t, model.StateRunning, got.State)
	assert.True(t, got.UpdatedAt.After(e.UpdatedAt))

	_, err = s.Fire(ctx, e.ID, model.TransitionStart, "twice")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	stored, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRunning, stored.State)
	assert.Equal(t, "picked up", stored.Reason)

	_, err = s.Fire(ctx, "missing", model.TransitionFail, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetClusterID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := &model.Execution{Name: "job"}
	require.NoError(t, s.Create(ctx, e))
	require.NoError(t, s.SetClusterID(ctx, e.ID, "4242"))

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "4242", got.ClusterID)

	assert.ErrorIs(t, s.SetClusterID(ctx, "missing", "1"), ErrNotFound)
}

func TestSessionCommitAndRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := &model.Execution{Name: "job"}
	require.NoError(t, s.Create(ctx, e))

	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	active, err := sess.ActiveExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NoError(t, sess.Fire(ctx, e.ID, model.TransitionFail, "lost"))
	require.NoError(t, sess.Rollback())

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateQueued, got.State, "rolled back transition must not persist")

	sess, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Fire(ctx, e.ID, model.TransitionFail, "lost"))
	require.NoError(t, sess.Commit())
	assert.NoError(t, sess.Rollback(), "rollback after commit is a no-op")

	got, err = s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	assert.Equal(t, "lost", got.Reason)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	e := &model.Execution{Name: "persisted"}
	require.NoError(t, s.Create(ctx, e))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}
