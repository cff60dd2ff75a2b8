package models

import "time"

// Project groups tasks under an owner-chosen label and color.
type Project struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"-"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Color       string    `db:"color" json:"color"`
	TaskCount   int       `db:"task_count" json:"task_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultProjectColor is applied when a project is created without one.
const DefaultProjectColor = "#538083"

// CreateProjectRequest creates a project for the caller.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateProjectRequest applies partial changes to a project.
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

// ProjectFilter captures list criteria for a single owner.
type ProjectFilter struct {
	UserID    string
	Query     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
