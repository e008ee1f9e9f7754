package tasks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklight/tasklight/internal/platform/httpx"
	_ "github.com/tasklight/tasklight/testing"
)

// memRepo is an in-memory Repository. WithTx snapshots the state and rolls
// back on error, mimicking the database transaction the real repository
// runs bulk operations in.
type memRepo struct {
	mu    sync.Mutex
	tasks map[string]Task

	// failToggleAfter makes ToggleAll fail after mutating that many rows,
	// to exercise rollback.
	failToggleAfter int
}

func newTaskRepo() *memRepo {
	return &memRepo{tasks: make(map[string]Task), failToggleAfter: -1}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.mu.Lock()
	snapshot := make(map[string]Task, len(r.tasks))
	for id, t := range r.tasks {
		snapshot[id] = t
	}
	r.mu.Unlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.tasks = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) Get(ctx context.Context, id, userID string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, httpx.ErrNotFound
	}
	return &t, nil
}

func (r *memRepo) List(ctx context.Context, userID string) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]Task, 0)
	for _, t := range r.tasks {
		if t.UserID == userID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *memRepo) Create(ctx context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task
	return nil
}

func (r *memRepo) Update(ctx context.Context, task Task) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return false, nil
	}
	r.tasks[task.ID] = task
	return true, nil
}

func (r *memRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

func (r *memRepo) ClearCompleted(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.UserID == userID && t.Completed {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.UserID == userID {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ToggleAll(ctx context.Context, userID string, completed bool, updatedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if r.failToggleAfter >= 0 && n >= int64(r.failToggleAfter) {
			return n, errors.New("simulated storage failure")
		}
		t.Completed = completed
		t.UpdatedAt = updatedAt
		r.tasks[id] = t
		n++
	}
	return n, nil
}

var _ Repository = (*memRepo)(nil)

func TestCreateValidatesTitle(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	cases := []struct {
		name  string
		title string
		valid bool
	}{
		{"empty", "", false},
		{"single char", "a", true},
		{"max length", strings.Repeat("a", 100), true},
		{"too long", strings.Repeat("a", 101), false},
		{"multibyte at limit", strings.Repeat("ü", 100), true},
		{"whitespace only counts", "   ", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := len(repo.tasks)
			task, err := service.Create(context.Background(), "user-a", tc.title)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, tc.title, task.Title)
				assert.False(t, task.Completed)
				assert.Equal(t, task.CreatedAt, task.UpdatedAt)
			} else {
				require.ErrorIs(t, err, httpx.ErrValidation)
				assert.Len(t, repo.tasks, before, "invalid title must create no row")
			}
		})
	}
}

func TestListOrderedByCreation(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	base := time.Now().UTC()
	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(context.Background(), Task{
			ID:        title,
			UserID:    "user-a",
			Title:     title,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := service.List(context.Background(), "user-a")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	assert.Equal(t, "third", list[2].Title)

	empty, err := service.List(context.Background(), "user-b")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdatePartialPatch(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	task, err := service.Create(context.Background(), "user-a", "Buy milk")
	require.NoError(t, err)

	completed := true
	updated, err := service.Update(context.Background(), "user-a", task.ID, UpdateTaskRequest{Completed: &completed})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Buy milk", updated.Title, "omitted title must keep prior value")
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt) || updated.UpdatedAt.Equal(task.UpdatedAt))

	title := "Buy oat milk"
	renamed, err := service.Update(context.Background(), "user-a", task.ID, UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", renamed.Title)
	assert.True(t, renamed.Completed, "omitted completed must keep prior value")
}

func TestUpdateCompletedRoundTrip(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	task, err := service.Create(context.Background(), "user-a", "Buy milk")
	require.NoError(t, err)

	on := true
	off := false
	first, err := service.Update(context.Background(), "user-a", task.ID, UpdateTaskRequest{Completed: &on})
	require.NoError(t, err)
	second, err := service.Update(context.Background(), "user-a", task.ID, UpdateTaskRequest{Completed: &off})
	require.NoError(t, err)

	assert.False(t, second.Completed)
	assert.Equal(t, "Buy milk", second.Title)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	assert.Equal(t, task.CreatedAt, second.CreatedAt, "created timestamp is immutable")
}

func TestUpdateRevalidatesTitle(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	task, err := service.Create(context.Background(), "user-a", "Buy milk")
	require.NoError(t, err)

	tooLong := strings.Repeat("a", 101)
	_, err = service.Update(context.Background(), "user-a", task.ID, UpdateTaskRequest{Title: &tooLong})
	require.ErrorIs(t, err, httpx.ErrValidation)

	unchanged, err := service.Get(context.Background(), "user-a", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", unchanged.Title)
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	task, err := service.Create(context.Background(), "user-a", "secret errand")
	require.NoError(t, err)

	_, err = service.Get(context.Background(), "user-b", task.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	title := "hijacked"
	_, err = service.Update(context.Background(), "user-b", task.ID, UpdateTaskRequest{Title: &title})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	err = service.Delete(context.Background(), "user-b", task.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	// The owner still sees the untouched task.
	kept, err := service.Get(context.Background(), "user-a", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret errand", kept.Title)
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	err := service.Delete(context.Background(), "user-a", "no-such-task")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestToggleAllScopedToUser(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	for _, title := range []string{"one", "two", "three"} {
		_, err := service.Create(context.Background(), "ann", title)
		require.NoError(t, err)
	}
	bobTask, err := service.Create(context.Background(), "bob", "untouched")
	require.NoError(t, err)

	n, err := service.ToggleAll(context.Background(), "ann", true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	annTasks, err := service.List(context.Background(), "ann")
	require.NoError(t, err)
	for _, task := range annTasks {
		assert.True(t, task.Completed)
	}

	bobAfter, err := service.Get(context.Background(), "bob", bobTask.ID)
	require.NoError(t, err)
	assert.False(t, bobAfter.Completed, "other users' tasks must remain untouched")
}

func TestToggleAllRollsBackOnFailure(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	for _, title := range []string{"one", "two", "three", "four"} {
		_, err := service.Create(context.Background(), "ann", title)
		require.NoError(t, err)
	}
	repo.failToggleAfter = 2

	_, err := service.ToggleAll(context.Background(), "ann", true)
	require.Error(t, err)

	list, err := service.List(context.Background(), "ann")
	require.NoError(t, err)
	for _, task := range list {
		assert.False(t, task.Completed, "a mid-batch failure must leave no task toggled")
	}
}

func TestClearCompletedRemovesOnlyCompleted(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	done, err := service.Create(context.Background(), "ann", "done task")
	require.NoError(t, err)
	open, err := service.Create(context.Background(), "ann", "open task")
	require.NoError(t, err)

	completed := true
	_, err = service.Update(context.Background(), "ann", done.ID, UpdateTaskRequest{Completed: &completed})
	require.NoError(t, err)

	n, err := service.ClearCompleted(context.Background(), "ann")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = service.Get(context.Background(), "ann", done.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = service.Get(context.Background(), "ann", open.ID)
	require.NoError(t, err)
}

func TestDeleteAllScopedToUser(t *testing.T) {
	repo := newTaskRepo()
	service := NewService(repo)

	for _, title := range []string{"one", "two"} {
		_, err := service.Create(context.Background(), "ann", title)
		require.NoError(t, err)
	}
	bobTask, err := service.Create(context.Background(), "bob", "keep me")
	require.NoError(t, err)

	n, err := service.DeleteAll(context.Background(), "ann")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	annList, err := service.List(context.Background(), "ann")
	require.NoError(t, err)
	assert.Empty(t, annList)

	_, err = service.Get(context.Background(), "bob", bobTask.ID)
	require.NoError(t, err)
}
