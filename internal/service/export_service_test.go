package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotask-io/dotask-api/internal/models"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
)

func TestExportServiceCSV(t *testing.T) {
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := newMockTaskStore(
		&models.Task{ID: "task-1", UserID: "user-1", Title: "Write report", Status: models.TaskStatusPending, Priority: models.TaskPriorityHigh, DueDate: &due},
	)
	svc := NewExportService(store, nil)

	result, err := svc.ExportTasks(context.Background(), models.TaskFilter{UserID: "user-1"}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Content)
	assert.Contains(t, body, "Title,Status,Priority")
	assert.Contains(t, body, "Write report,PENDING,HIGH,2026-09-01 12:00")
}

func TestExportServicePDF(t *testing.T) {
	store := newMockTaskStore(
		&models.Task{ID: "task-1", UserID: "user-1", Title: "Write report", Status: models.TaskStatusPending, Priority: models.TaskPriorityLow},
	)
	svc := NewExportService(store, nil)

	result, err := svc.ExportTasks(context.Background(), models.TaskFilter{UserID: "user-1"}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := NewExportService(newMockTaskStore(), nil)

	_, err := svc.ExportTasks(context.Background(), models.TaskFilter{UserID: "user-1"}, "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
