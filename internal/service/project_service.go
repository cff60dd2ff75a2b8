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

// ProjectStore is the persistence surface the project service needs.
type ProjectStore interface {
	FindByID(ctx context.Context, id, userID string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id, userID string) error
}

// ListCache caches list payloads keyed per owner.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cachedProjectList struct {
	Projects []models.Project  `json:"projects"`
	Meta     models.Pagination `json:"meta"`
}

// ProjectService manages projects with a cache-aside list path. Any
// write invalidates the owner's cached lists.
type ProjectService struct {
	projects  ProjectStore
	cache     ListCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProjectService creates a new instance of ProjectService. A nil
// cache disables caching; metrics may be nil.
func NewProjectService(projects ProjectStore, cache ListCache, cacheTTL time.Duration, metrics *MetricsService, v *validator.Validate, logger *zap.Logger) *ProjectService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ProjectService{projects: projects, cache: cache, cacheTTL: cacheTTL, metrics: metrics, validator: v, logger: logger}
}

// Get returns a single project owned by the caller.
func (s *ProjectService) Get(ctx context.Context, id, userID string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

// List returns the caller's projects, serving repeat queries from cache.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, *models.Pagination, error) {
	key := s.listCacheKey(filter)
	if s.cache != nil {
		var cached cachedProjectList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached.Projects, &cached.Meta, nil
		} else if appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordCacheOperation(false)
		} else {
			s.logger.Warn("project list cache read failed", zap.Error(err))
		}
	}

	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	if projects == nil {
		projects = []models.Project{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	meta := models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedProjectList{Projects: projects, Meta: meta}, s.cacheTTL); err != nil {
			s.logger.Warn("project list cache write failed", zap.Error(err))
		}
	}

	return projects, &meta, nil
}

// Create stores a new project for the caller.
func (s *ProjectService) Create(ctx context.Context, userID string, req models.CreateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	project := &models.Project{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	s.invalidateLists(ctx, userID)
	return project, nil
}

// Update applies partial changes to a project.
func (s *ProjectService) Update(ctx context.Context, id, userID string, req models.UpdateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	project, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Color != nil {
		project.Color = *req.Color
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}

	s.invalidateLists(ctx, userID)
	return project, nil
}

// Delete removes a project; its tasks survive unassigned.
func (s *ProjectService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}
	s.invalidateLists(ctx, userID)
	return nil
}

func (s *ProjectService) listCacheKey(filter models.ProjectFilter) string {
	return fmt.Sprintf("projects:%s:q=%s:p=%d:ps=%d:sb=%s:so=%s",
		filter.UserID, filter.Query, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func (s *ProjectService) invalidateLists(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("projects:%s:*", userID)); err != nil {
		s.logger.Warn("project list cache invalidation failed", zap.Error(err))
	}
}
