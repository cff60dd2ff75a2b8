package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/dotask-io/dotask-api/internal/models"
)

func newTaskRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func taskRows(tasks ...*models.Task) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "project_id", "title", "description", "status", "priority", "due_date", "completed_at", "created_at", "updated_at"})
	for _, task := range tasks {
		rows.AddRow(task.ID, task.UserID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.CompletedAt, task.CreatedAt, task.UpdatedAt)
	}
	return rows
}

func TestTaskRepositoryFindByIDScopedToOwner(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	task := &models.Task{
		ID:        "task-1",
		UserID:    "user-1",
		Title:     "Write report",
		Status:    models.TaskStatusPending,
		Priority:  models.TaskPriorityMedium,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2")).
		WithArgs("task-1", "user-1").
		WillReturnRows(taskRows(task))

	found, err := repo.FindByID(context.Background(), "task-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "task-1", found.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+taskColumns+" FROM tasks")).
		WithArgs("task-1", "user-2").
		WillReturnRows(taskRows())

	_, err = repo.FindByID(context.Background(), "task-1", "user-2")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListBuildsFilterConditions(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	status := models.TaskStatusPending
	query := "report"

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE user_id = \$1 AND status = \$2 AND \(LOWER\(title\) LIKE \$3 OR LOWER\(description\) LIKE \$3\) ORDER BY due_date ASC LIMIT 10 OFFSET 0`).
		WithArgs("user-1", status, "%report%").
		WillReturnRows(taskRows(&models.Task{ID: "task-1", UserID: "user-1", Status: status, Priority: models.TaskPriorityLow}))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tasks WHERE user_id = \$1`).
		WithArgs("user-1", status, "%report%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	tasks, total, err := repo.List(context.Background(), models.TaskFilter{
		UserID:    "user-1",
		Status:    &status,
		Query:     query,
		Page:      1,
		PageSize:  10,
		SortBy:    "due_date",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListRejectsUnknownSortColumn(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)

	// An unlisted sort column falls back to created_at DESC.
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(taskRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.TaskFilter{
		UserID: "user-1",
		SortBy: "password_hash; DROP TABLE tasks",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	task := &models.Task{
		UserID:   "user-1",
		Title:    "Write report",
		Status:   models.TaskStatusPending,
		Priority: models.TaskPriorityMedium,
	}
	require.NoError(t, repo.Create(context.Background(), task))
	require.NotEmpty(t, task.ID)
	require.False(t, task.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryUpdateScopedToOwner(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()

	repo := NewTaskRepository(db)
	mock.ExpectExec(`UPDATE tasks SET .* WHERE id = .* AND user_id = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	task := &models.Task{
		ID:       "task-1",
		UserID:   "user-1",
		Title:    "Write report",
		Status:   models.TaskStatusInProgress,
		Priority: models.TaskPriorityHigh,
	}
	require.NoError(t, repo.Update(context.Background(), task))
	require.NoError(t, mock.ExpectationsWereMet())
}
