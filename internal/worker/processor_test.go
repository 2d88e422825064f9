package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
	"github.com/smartats/ats-backend/internal/storage"
	"github.com/smartats/ats-backend/internal/taskstore"
)

type fakeExtractor struct {
	mu     sync.Mutex
	calls  int
	fields domain.ResumeFields
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _ string) (domain.ResumeFields, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fields, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingPublisher) Publish(event domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingPublisher) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

type unavailableStore struct{}

func (unavailableStore) Put(context.Context, domain.ParseTask) error {
	return taskstore.ErrUnavailable
}

func (unavailableStore) Get(context.Context, string) (domain.ParseTask, error) {
	return domain.ParseTask{}, taskstore.ErrUnavailable
}

func newProcessorFixture(ext *fakeExtractor) (*Processor, *taskstore.MemoryStore, *storage.MemoryStorage, *recordingPublisher) {
	tasks := taskstore.NewMemoryStore(0)
	files := storage.NewMemoryStorage("")
	publisher := &recordingPublisher{}
	processor := NewProcessor(nil, tasks, files, ext, publisher, time.Second, log.New(io.Discard, "", 0))
	return processor, tasks, files, publisher
}

func TestProcessMessageCompletesTask(t *testing.T) {
	ext := &fakeExtractor{fields: domain.ResumeFields{
		Name:   "Jane Doe",
		Email:  "jane.doe@example.com",
		Phone:  "+1 415 555 0100",
		Skills: []string{"Go", "SQL"},
	}}
	processor, tasks, files, publisher := newProcessorFixture(ext)

	object, err := files.Put(context.Background(), "resume.pdf", []byte("resume body"))
	if err != nil {
		t.Fatalf("seed storage: %v", err)
	}

	message := domain.ParseMessage{
		TaskID:    "t1",
		ResumeID:  "r1",
		Reference: object.Reference,
		FileName:  "resume.pdf",
	}
	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("process: %v", err)
	}

	task, err := tasks.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted || task.Progress != 100 {
		t.Fatalf("expected COMPLETED/100, got %s/%d", task.Status, task.Progress)
	}
	if task.Result == nil || task.Result.Name != "Jane Doe" {
		t.Fatalf("expected extracted result on task, got %+v", task.Result)
	}

	events := publisher.all()
	if len(events) != 1 || events[0].Type != domain.EventResumeParseCompleted {
		t.Fatalf("expected one parse_completed event, got %+v", events)
	}
	if events[0].Data["email"] != "ja****@example.com" {
		t.Fatalf("event must carry masked email, got %v", events[0].Data["email"])
	}
}

func TestProcessMessageRecordsTerminalFailure(t *testing.T) {
	ext := &fakeExtractor{err: errors.New("model rejected document")}
	processor, tasks, files, publisher := newProcessorFixture(ext)

	object, _ := files.Put(context.Background(), "resume.pdf", []byte("resume body"))
	message := domain.ParseMessage{TaskID: "t1", ResumeID: "r1", Reference: object.Reference, FileName: "resume.pdf"}

	// Extraction errors are terminal: the message must be acknowledged.
	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("expected ack on terminal failure, got %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED, got %s", task.Status)
	}
	if task.Error != "model rejected document" {
		t.Fatalf("expected failure reason on task, got %q", task.Error)
	}

	events := publisher.all()
	if len(events) != 1 || events[0].Type != domain.EventResumeParseFailed {
		t.Fatalf("expected one parse_failed event, got %+v", events)
	}
}

func TestProcessMessageSkipsTerminalRedelivery(t *testing.T) {
	ext := &fakeExtractor{fields: domain.ResumeFields{Name: "Jane Doe"}}
	processor, tasks, files, publisher := newProcessorFixture(ext)

	object, _ := files.Put(context.Background(), "resume.pdf", []byte("resume body"))
	_ = tasks.Put(context.Background(), domain.ParseTask{
		TaskID:   "t1",
		ResumeID: "r1",
		Status:   domain.TaskStatusCompleted,
		Progress: 100,
	})

	message := domain.ParseMessage{TaskID: "t1", ResumeID: "r1", Reference: object.Reference}
	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("redelivery must be acknowledged, got %v", err)
	}
	if ext.callCount() != 0 {
		t.Fatalf("terminal task must not be re-extracted, got %d calls", ext.callCount())
	}
	if len(publisher.all()) != 0 {
		t.Fatalf("terminal redelivery must not publish events")
	}
}

func TestProcessMessageFailsWhenContentMissing(t *testing.T) {
	ext := &fakeExtractor{}
	processor, tasks, _, _ := newProcessorFixture(ext)

	message := domain.ParseMessage{TaskID: "t1", ResumeID: "r1", Reference: "missing"}
	if err := processor.processMessage(context.Background(), message); err != nil {
		t.Fatalf("missing content is terminal, expected ack, got %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED when content is gone, got %s", task.Status)
	}
	if ext.callCount() != 0 {
		t.Fatalf("extractor must not run without content")
	}
}

func TestProcessMessageReturnsErrorWhenStoreUnavailable(t *testing.T) {
	ext := &fakeExtractor{}
	files := storage.NewMemoryStorage("")
	processor := NewProcessor(nil, unavailableStore{}, files, ext, nil, time.Second, log.New(io.Discard, "", 0))

	message := domain.ParseMessage{TaskID: "t1", ResumeID: "r1", Reference: "ref"}
	if err := processor.processMessage(context.Background(), message); !errors.Is(err, taskstore.ErrUnavailable) {
		t.Fatalf("expected store unavailability to trigger redelivery, got %v", err)
	}
	if ext.callCount() != 0 {
		t.Fatalf("extractor must not run when task state is unreadable")
	}
}
