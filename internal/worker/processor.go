package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
	"github.com/smartats/ats-backend/internal/extractor"
	"github.com/smartats/ats-backend/internal/policy"
	"github.com/smartats/ats-backend/internal/queue"
	"github.com/smartats/ats-backend/internal/storage"
	"github.com/smartats/ats-backend/internal/taskstore"
)

// EventPublisher is the slice of the event bus the worker needs.
type EventPublisher interface {
	Publish(event domain.Event)
}

// Processor consumes parse jobs and drives each task through
// PARSING -> COMPLETED/FAILED, publishing the matching domain event.
type Processor struct {
	consumer  queue.Consumer
	tasks     taskstore.Store
	files     storage.Storage
	extractor extractor.Extractor
	publisher EventPublisher
	timeout   time.Duration
	logger    *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	tasks taskstore.Store,
	files storage.Storage,
	ext extractor.Extractor,
	publisher EventPublisher,
	extractTimeout time.Duration,
	logger *log.Logger,
) *Processor {
	if extractTimeout <= 0 {
		extractTimeout = 60 * time.Second
	}
	return &Processor{
		consumer:  consumer,
		tasks:     tasks,
		files:     files,
		extractor: ext,
		publisher: publisher,
		timeout:   extractTimeout,
		logger:    logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// processMessage handles one at-least-once delivery. Returning nil
// acknowledges the message; returning an error hands it back to the queue
// for redelivery. Extraction failures are terminal, so they are recorded
// as FAILED and acknowledged rather than retried.
func (p *Processor) processMessage(ctx context.Context, message domain.ParseMessage) error {
	existing, err := p.tasks.Get(ctx, message.TaskID)
	if err == nil && existing.Status.Terminal() {
		// Redelivery of a finished task. Acknowledge without reprocessing.
		if p.logger != nil {
			p.logger.Printf("skipping redelivered task in terminal state task_id=%s status=%s", message.TaskID, existing.Status)
		}
		return nil
	}
	if err != nil && errors.Is(err, taskstore.ErrUnavailable) {
		return fmt.Errorf("load task %s: %w", message.TaskID, err)
	}

	task := domain.ParseTask{
		TaskID:   message.TaskID,
		ResumeID: message.ResumeID,
		Status:   domain.TaskStatusParsing,
		Progress: 10,
		Message:  "fetching resume content",
	}
	if err := p.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("mark parsing: %w", err)
	}

	content, err := p.files.Get(ctx, message.Reference)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The stored file is gone; retrying cannot bring it back.
			return p.fail(ctx, task, fmt.Sprintf("resume content missing: %v", err))
		}
		return fmt.Errorf("fetch resume content %s: %w", message.Reference, err)
	}

	task.Progress = 40
	task.Message = "extracting candidate fields"
	if err := p.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("mark extracting: %w", err)
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.timeout)
	fields, extractErr := p.extractor.Extract(extractCtx, content, message.FileName)
	cancel()
	if extractErr != nil {
		return p.fail(ctx, task, extractErr.Error())
	}

	task.Status = domain.TaskStatusCompleted
	task.Progress = 100
	task.Message = "parse completed"
	task.Error = ""
	task.Result = &fields
	if err := p.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	if p.publisher != nil {
		p.publisher.Publish(domain.NewEvent(domain.EventResumeParseCompleted, map[string]any{
			"task_id":   task.TaskID,
			"resume_id": task.ResumeID,
			"name":      fields.Name,
			"email":     policy.MaskEmail(fields.Email),
			"phone":     policy.MaskPhone(fields.Phone),
			"skills":    fields.Skills,
		}))
	}

	if p.logger != nil {
		p.logger.Printf("resume parsed task_id=%s resume_id=%s", task.TaskID, task.ResumeID)
	}
	return nil
}

// fail records the terminal FAILED state and acknowledges the message.
// Only a failed status write keeps the message in the queue.
func (p *Processor) fail(ctx context.Context, task domain.ParseTask, reason string) error {
	task.Status = domain.TaskStatusFailed
	task.Progress = 100
	task.Message = "parse failed"
	task.Error = reason
	task.Result = nil
	if err := p.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	if p.publisher != nil {
		p.publisher.Publish(domain.NewEvent(domain.EventResumeParseFailed, map[string]any{
			"task_id":   task.TaskID,
			"resume_id": task.ResumeID,
			"error":     reason,
		}))
	}

	if p.logger != nil {
		p.logger.Printf("resume parse failed task_id=%s err=%s", task.TaskID, reason)
	}
	return nil
}
