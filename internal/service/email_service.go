package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dotask-io/dotask-api/pkg/jobs"
	"github.com/dotask-io/dotask-api/pkg/mailer"
)

type emailJob struct {
	To      string
	Subject string
	Body    string
}

// EmailService delivers mail asynchronously through the background job
// queue so HTTP handlers never block on SMTP.
type EmailService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewEmailService wires a delivery queue around the given mailer.
func NewEmailService(m mailer.Mailer, workers, maxRetries int, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(emailJob)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		return m.Send(payload.To, payload.Subject, payload.Body)
	}

	queue := jobs.NewQueue("email", handler, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: maxRetries,
		Logger:     logger,
	})

	return &EmailService{queue: queue, logger: logger}
}

// Start launches the delivery workers.
func (s *EmailService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *EmailService) Stop() {
	s.queue.Stop()
}

// Send enqueues a message for delivery. The enqueue itself is the only
// synchronous step; delivery failures are retried by the queue.
func (s *EmailService) Send(to, subject, htmlBody string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "send_email",
		Payload: emailJob{To: to, Subject: subject, Body: htmlBody},
	})
}
