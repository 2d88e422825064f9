package taskstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

var (
	// ErrNotFound means the task was never written or its record expired.
	ErrNotFound = errors.New("task state not found")
	// ErrUnavailable means the backing store could not answer; callers must
	// not treat it as "not found".
	ErrUnavailable = errors.New("task state temporarily unavailable")
)

const DefaultRetention = 24 * time.Hour

// Store keeps per-task parsing state with a sliding retention window.
// Put always overwrites the full record and resets the expiry.
type Store interface {
	Put(ctx context.Context, task domain.ParseTask) error
	Get(ctx context.Context, taskID string) (domain.ParseTask, error)
}

type memoryEntry struct {
	task      domain.ParseTask
	expiresAt time.Time
}

// MemoryStore is the fallback used when Redis is not configured. Reads may
// run concurrently with the single writer owning each task.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	retention time.Duration
	now       func() time.Time
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		entries:   make(map[string]memoryEntry),
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(_ context.Context, task domain.ParseTask) error {
	now := s.now()
	task.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[task.TaskID] = memoryEntry{
		task:      cloneTask(task),
		expiresAt: now.Add(s.retention),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (domain.ParseTask, error) {
	s.mu.RLock()
	entry, exists := s.entries[taskID]
	s.mu.RUnlock()

	if !exists {
		return domain.ParseTask{}, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, taskID)
		s.mu.Unlock()
		return domain.ParseTask{}, ErrNotFound
	}
	return cloneTask(entry.task), nil
}

func cloneTask(task domain.ParseTask) domain.ParseTask {
	clone := task
	if task.Result != nil {
		result := *task.Result
		result.Skills = append([]string(nil), task.Result.Skills...)
		clone.Result = &result
	}
	return clone
}
