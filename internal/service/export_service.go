package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dotask-io/dotask-api/internal/models"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
	"github.com/dotask-io/dotask-api/pkg/export"
)

const exportPageSize = 100

// ExportService renders the caller's tasks as downloadable CSV or PDF.
type ExportService struct {
	tasks  TaskStore
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// ExportResult carries rendered bytes plus the response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// NewExportService creates a new instance of ExportService.
func NewExportService(tasks TaskStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		tasks:  tasks,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// ExportTasks renders every task matching the filter. Format is "csv"
// or "pdf".
func (s *ExportService) ExportTasks(ctx context.Context, filter models.TaskFilter, format string) (*ExportResult, error) {
	format = strings.ToLower(format)
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	dataset, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format("2006-01-02")
	switch format {
	case "csv":
		content, err := s.csv.Render(*dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("tasks-%s.csv", stamp),
		}, nil
	default:
		content, err := s.pdf.Render(*dataset, "Tasks")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("tasks-%s.pdf", stamp),
		}, nil
	}
}

func (s *ExportService) collect(ctx context.Context, filter models.TaskFilter) (*export.Dataset, error) {
	headers := []string{"Title", "Status", "Priority", "Due Date", "Completed At", "Created At"}
	dataset := &export.Dataset{Headers: headers}

	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		tasks, total, err := s.tasks.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
		}
		for _, task := range tasks {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Title":        task.Title,
				"Status":       string(task.Status),
				"Priority":     string(task.Priority),
				"Due Date":     formatTime(task.DueDate),
				"Completed At": formatTime(task.CompletedAt),
				"Created At":   task.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		if page*exportPageSize >= total || len(tasks) == 0 {
			break
		}
	}

	return dataset, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
