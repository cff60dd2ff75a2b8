package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dotask-io/dotask-api/internal/models"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
)

// TaskStore is the persistence surface the task service needs.
type TaskStore interface {
	FindByID(ctx context.Context, id, userID string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, int, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, userID string) error
}

// ProjectFinder resolves a project owned by a user, used to validate
// task-to-project references.
type ProjectFinder interface {
	FindByID(ctx context.Context, id, userID string) (*models.Project, error)
}

// TaskService manages tasks. All operations are scoped to the
// authenticated owner.
type TaskService struct {
	tasks     TaskStore
	projects  ProjectFinder
	cache     ListCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService creates a new instance of TaskService. The cache is
// the shared project-list cache; task writes change the task counts
// embedded in cached project lists, so those writes invalidate it. A
// nil cache disables invalidation.
func NewTaskService(tasks TaskStore, projects ProjectFinder, cache ListCache, v *validator.Validate, logger *zap.Logger) *TaskService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{tasks: tasks, projects: projects, cache: cache, validator: v, logger: logger}
}

// Get returns a single task owned by the caller.
func (s *TaskService) Get(ctx context.Context, id, userID string) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}

// List returns the caller's tasks matching the filter.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, *models.Pagination, error) {
	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return tasks, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create stores a new task for the caller. A referenced project must
// exist and belong to the same owner.
func (s *TaskService) Create(ctx context.Context, userID string, req models.CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	if req.ProjectID != nil {
		if err := s.checkProject(ctx, *req.ProjectID, userID); err != nil {
			return nil, err
		}
	}

	status := models.TaskStatusPending
	if req.Status != "" {
		status = models.TaskStatus(req.Status)
	}
	priority := models.TaskPriorityMedium
	if req.Priority != "" {
		priority = models.TaskPriority(req.Priority)
	}

	task := &models.Task{
		UserID:      userID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     req.DueDate,
	}
	if status == models.TaskStatusCompleted {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	if task.ProjectID != nil {
		s.invalidateProjectLists(ctx, userID)
	}
	return task, nil
}

// Update applies partial changes. Completing a task stamps
// completed_at; moving it out of COMPLETED clears the stamp.
func (s *TaskService) Update(ctx context.Context, id, userID string, req models.UpdateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	task, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	movedProject := false
	if req.ProjectID != nil && (task.ProjectID == nil || *req.ProjectID != *task.ProjectID) {
		if err := s.checkProject(ctx, *req.ProjectID, userID); err != nil {
			return nil, err
		}
		task.ProjectID = req.ProjectID
		movedProject = true
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = models.TaskPriority(*req.Priority)
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Status != nil {
		next := models.TaskStatus(*req.Status)
		if next == models.TaskStatusCompleted && task.Status != models.TaskStatusCompleted {
			now := time.Now().UTC()
			task.CompletedAt = &now
		}
		if next != models.TaskStatusCompleted {
			task.CompletedAt = nil
		}
		task.Status = next
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}
	if movedProject {
		s.invalidateProjectLists(ctx, userID)
	}
	return task, nil
}

// Delete removes a task owned by the caller.
func (s *TaskService) Delete(ctx context.Context, id, userID string) error {
	task, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	if task.ProjectID != nil {
		s.invalidateProjectLists(ctx, userID)
	}
	return nil
}

// invalidateProjectLists drops the owner's cached project lists. Those
// payloads embed per-project task counts, which task membership changes
// make stale.
func (s *TaskService) invalidateProjectLists(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("projects:%s:*", userID)); err != nil {
		s.logger.Warn("project list cache invalidation failed", zap.Error(err))
	}
}

func (s *TaskService) checkProject(ctx context.Context, projectID, userID string) error {
	if _, err := s.projects.FindByID(ctx, projectID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return nil
}
