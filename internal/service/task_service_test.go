package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotask-io/dotask-api/internal/models"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
)

type mockTaskStore struct {
	tasks map[string]*models.Task
}

func newMockTaskStore(tasks ...*models.Task) *mockTaskStore {
	store := &mockTaskStore{tasks: make(map[string]*models.Task)}
	for _, task := range tasks {
		store.tasks[task.ID] = task
	}
	return store
}

func (m *mockTaskStore) FindByID(ctx context.Context, id, userID string) (*models.Task, error) {
	task, ok := m.tasks[id]
	if !ok || task.UserID != userID {
		return nil, sql.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (m *mockTaskStore) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, int, error) {
	var out []models.Task
	for _, task := range m.tasks {
		if task.UserID == filter.UserID {
			out = append(out, *task)
		}
	}
	return out, len(out), nil
}

func (m *mockTaskStore) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = "task-1"
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskStore) Update(ctx context.Context, task *models.Task) error {
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskStore) Delete(ctx context.Context, id, userID string) error {
	delete(m.tasks, id)
	return nil
}

type mockProjectFinder struct {
	projects map[string]*models.Project
}

func (m *mockProjectFinder) FindByID(ctx context.Context, id, userID string) (*models.Project, error) {
	project, ok := m.projects[id]
	if !ok || project.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return project, nil
}

func TestTaskServiceCreateDefaults(t *testing.T) {
	store := newMockTaskStore()
	svc := NewTaskService(store, &mockProjectFinder{}, nil, nil, nil)

	task, err := svc.Create(context.Background(), "user-1", models.CreateTaskRequest{Title: "Write report"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, "user-1", task.UserID)
}

func TestTaskServiceCreateCompletedStampsCompletion(t *testing.T) {
	store := newMockTaskStore()
	svc := NewTaskService(store, &mockProjectFinder{}, nil, nil, nil)

	task, err := svc.Create(context.Background(), "user-1", models.CreateTaskRequest{
		Title:  "Done already",
		Status: "COMPLETED",
	})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
}

func TestTaskServiceCreateUnknownProject(t *testing.T) {
	store := newMockTaskStore()
	svc := NewTaskService(store, &mockProjectFinder{}, nil, nil, nil)
	projectID := "missing"

	_, err := svc.Create(context.Background(), "user-1", models.CreateTaskRequest{
		Title:     "Write report",
		ProjectID: &projectID,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTaskServiceCreateForeignProject(t *testing.T) {
	finder := &mockProjectFinder{projects: map[string]*models.Project{
		"proj-1": {ID: "proj-1", UserID: "someone-else"},
	}}
	svc := NewTaskService(newMockTaskStore(), finder, nil, nil, nil)
	projectID := "proj-1"

	_, err := svc.Create(context.Background(), "user-1", models.CreateTaskRequest{
		Title:     "Write report",
		ProjectID: &projectID,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTaskServiceUpdateStatusTransitions(t *testing.T) {
	store := newMockTaskStore(&models.Task{
		ID:       "task-1",
		UserID:   "user-1",
		Title:    "Write report",
		Status:   models.TaskStatusPending,
		Priority: models.TaskPriorityMedium,
	})
	svc := NewTaskService(store, &mockProjectFinder{}, nil, nil, nil)
	ctx := context.Background()

	completed := "COMPLETED"
	task, err := svc.Update(ctx, "task-1", "user-1", models.UpdateTaskRequest{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.WithinDuration(t, time.Now().UTC(), *task.CompletedAt, time.Minute)

	pending := "PENDING"
	task, err = svc.Update(ctx, "task-1", "user-1", models.UpdateTaskRequest{Status: &pending})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, models.TaskStatusPending, task.Status)
}

func TestTaskServiceGetScopedToOwner(t *testing.T) {
	store := newMockTaskStore(&models.Task{ID: "task-1", UserID: "user-1", Title: "Mine"})
	svc := NewTaskService(store, &mockProjectFinder{}, nil, nil, nil)

	_, err := svc.Get(context.Background(), "task-1", "user-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTaskServiceDeleteMissing(t *testing.T) {
	svc := NewTaskService(newMockTaskStore(), &mockProjectFinder{}, nil, nil, nil)

	err := svc.Delete(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTaskServiceListReturnsPagination(t *testing.T) {
	store := newMockTaskStore(
		&models.Task{ID: "task-1", UserID: "user-1"},
		&models.Task{ID: "task-2", UserID: "user-1"},
		&models.Task{ID: "task-3", UserID: "user-2"},
	)
	svc := NewTaskService(store, &mockProjectFinder{}, nil, nil, nil)

	tasks, pagination, err := svc.List(context.Background(), models.TaskFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestTaskServiceWritesInvalidateProjectListCache(t *testing.T) {
	finder := &mockProjectFinder{projects: map[string]*models.Project{
		"proj-1": {ID: "proj-1", UserID: "user-1"},
		"proj-2": {ID: "proj-2", UserID: "user-1"},
	}}
	cache := newMockListCache()
	svc := NewTaskService(newMockTaskStore(), finder, cache, nil, nil)
	ctx := context.Background()
	projectID := "proj-1"

	// Creating a task in a project changes that project's task count, so
	// the owner's cached project lists are dropped.
	task, err := svc.Create(ctx, "user-1", models.CreateTaskRequest{
		Title:     "Write report",
		ProjectID: &projectID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"projects:user-1:*"}, cache.deleted)

	// Moving the task to another project changes two counts.
	next := "proj-2"
	_, err = svc.Update(ctx, task.ID, "user-1", models.UpdateTaskRequest{ProjectID: &next})
	require.NoError(t, err)
	assert.Len(t, cache.deleted, 2)

	require.NoError(t, svc.Delete(ctx, task.ID, "user-1"))
	assert.Len(t, cache.deleted, 3)
}

func TestTaskServiceUnassignedWritesLeaveProjectListCache(t *testing.T) {
	cache := newMockListCache()
	svc := NewTaskService(newMockTaskStore(), &mockProjectFinder{}, cache, nil, nil)
	ctx := context.Background()

	task, err := svc.Create(ctx, "user-1", models.CreateTaskRequest{Title: "Loose task"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, task.ID, "user-1"))
	assert.Empty(t, cache.deleted)
}
