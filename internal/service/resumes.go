package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/smartats/ats-backend/internal/audit"
	"github.com/smartats/ats-backend/internal/domain"
	"github.com/smartats/ats-backend/internal/queue"
	"github.com/smartats/ats-backend/internal/storage"
	"github.com/smartats/ats-backend/internal/taskstore"
)

const maxResumeSize = 10 << 20 // 10 MiB

// EventPublisher is the slice of the event bus the services need.
type EventPublisher interface {
	Publish(event domain.Event)
}

// UploadInput is one resume file submitted for parsing.
type UploadInput struct {
	FileName string
	Content  []byte
}

// UploadReceipt is returned immediately after a resume is accepted; the
// actual parsing happens asynchronously.
type UploadReceipt struct {
	TaskID   string `json:"task_id"`
	ResumeID string `json:"resume_id"`
	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Status   string `json:"status"`
}

// ResumesService accepts resume uploads, enqueues parse jobs and answers
// task-status polls.
type ResumesService struct {
	tasks     taskstore.Store
	files     storage.Storage
	producer  queue.Producer
	publisher EventPublisher
	auditor   audit.Recorder
	logger    *log.Logger
}

func NewResumesService(
	tasks taskstore.Store,
	files storage.Storage,
	producer queue.Producer,
	publisher EventPublisher,
	auditor audit.Recorder,
	logger *log.Logger,
) *ResumesService {
	return &ResumesService{
		tasks:     tasks,
		files:     files,
		producer:  producer,
		publisher: publisher,
		auditor:   auditor,
		logger:    logger,
	}
}

// Upload stores the resume, records a QUEUED task and enqueues the parse
// job. The returned receipt carries the task ID for status polling.
func (s *ResumesService) Upload(ctx context.Context, ownerID string, input UploadInput) (*UploadReceipt, error) {
	if err := validateUpload(input); err != nil {
		return nil, err
	}

	object, err := s.files.Put(ctx, input.FileName, input.Content)
	if err != nil {
		return nil, fmt.Errorf("store resume: %w", err)
	}

	now := time.Now().UTC()
	task := domain.ParseTask{
		TaskID:   uuid.NewString(),
		ResumeID: uuid.NewString(),
		Status:   domain.TaskStatusQueued,
		Progress: 0,
		Message:  "queued for parsing",
	}
	if err := s.tasks.Put(ctx, task); err != nil {
		return nil, fmt.Errorf("record task: %w", err)
	}

	message := domain.ParseMessage{
		TaskID:      task.TaskID,
		ResumeID:    task.ResumeID,
		Reference:   object.Reference,
		FileName:    input.FileName,
		OwnerID:     ownerID,
		Attempt:     0,
		RequestedAt: now,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		task.Status = domain.TaskStatusFailed
		task.Message = "enqueue failed"
		task.Error = err.Error()
		_ = s.tasks.Put(ctx, task)
		return nil, fmt.Errorf("enqueue parse job: %w", err)
	}

	s.afterAccept(ctx, ownerID, task, input.FileName)

	return &UploadReceipt{
		TaskID:   task.TaskID,
		ResumeID: task.ResumeID,
		FileName: input.FileName,
		URL:      object.URL,
		Status:   string(task.Status),
	}, nil
}

// UploadBatch accepts several resumes in one call. Validation and storage
// happen per file; the parse jobs go out in a single batch enqueue so a
// broker round-trip is paid once.
func (s *ResumesService) UploadBatch(ctx context.Context, ownerID string, inputs []UploadInput) ([]*UploadReceipt, error) {
	if len(inputs) == 0 {
		return nil, invalid("files", "at least one file is required")
	}
	for _, input := range inputs {
		if err := validateUpload(input); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	receipts := make([]*UploadReceipt, 0, len(inputs))
	messages := make([]domain.ParseMessage, 0, len(inputs))
	tasks := make([]domain.ParseTask, 0, len(inputs))

	for _, input := range inputs {
		object, err := s.files.Put(ctx, input.FileName, input.Content)
		if err != nil {
			return nil, fmt.Errorf("store resume %s: %w", input.FileName, err)
		}

		task := domain.ParseTask{
			TaskID:   uuid.NewString(),
			ResumeID: uuid.NewString(),
			Status:   domain.TaskStatusQueued,
			Progress: 0,
			Message:  "queued for parsing",
		}
		if err := s.tasks.Put(ctx, task); err != nil {
			return nil, fmt.Errorf("record task: %w", err)
		}

		tasks = append(tasks, task)
		messages = append(messages, domain.ParseMessage{
			TaskID:      task.TaskID,
			ResumeID:    task.ResumeID,
			Reference:   object.Reference,
			FileName:    input.FileName,
			OwnerID:     ownerID,
			Attempt:     0,
			RequestedAt: now,
		})
		receipts = append(receipts, &UploadReceipt{
			TaskID:   task.TaskID,
			ResumeID: task.ResumeID,
			FileName: input.FileName,
			URL:      object.URL,
			Status:   string(task.Status),
		})
	}

	if err := s.producer.EnqueueBatch(ctx, messages); err != nil {
		for _, task := range tasks {
			task.Status = domain.TaskStatusFailed
			task.Message = "enqueue failed"
			task.Error = err.Error()
			_ = s.tasks.Put(ctx, task)
		}
		return nil, fmt.Errorf("enqueue parse jobs: %w", err)
	}

	for i, task := range tasks {
		s.afterAccept(ctx, ownerID, task, inputs[i].FileName)
	}
	return receipts, nil
}

// GetTaskStatus returns the current task record. taskstore.ErrNotFound and
// taskstore.ErrUnavailable pass through for the HTTP layer to map.
func (s *ResumesService) GetTaskStatus(ctx context.Context, taskID string) (domain.ParseTask, error) {
	if taskID == "" {
		return domain.ParseTask{}, invalid("task_id", "task id is required")
	}
	return s.tasks.Get(ctx, taskID)
}

func (s *ResumesService) afterAccept(ctx context.Context, ownerID string, task domain.ParseTask, fileName string) {
	if s.publisher != nil {
		s.publisher.Publish(domain.NewEvent(domain.EventResumeUploaded, map[string]any{
			"task_id":   task.TaskID,
			"resume_id": task.ResumeID,
			"file_name": fileName,
		}))
	}
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Operation{
			Module:      "resumes",
			Action:      "upload",
			Description: fmt.Sprintf("resume %s accepted as task %s", fileName, task.TaskID),
			ActorID:     ownerID,
		})
	}
	if s.logger != nil {
		s.logger.Printf("resume accepted task_id=%s file=%s", task.TaskID, fileName)
	}
}

func validateUpload(input UploadInput) error {
	if input.FileName == "" {
		return invalid("file_name", "file name is required")
	}
	if len(input.Content) == 0 {
		return invalid("content", "file content is empty")
	}
	if len(input.Content) > maxResumeSize {
		return invalid("content", "file exceeds the 10 MiB limit")
	}
	return nil
}
