package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// Object identifies a stored file.
type Object struct {
	Reference string
	URL       string
}

// Storage is the file-storage collaborator: opaque bytes in, reference and
// fetch URL out.
type Storage interface {
	Put(ctx context.Context, fileName string, content []byte) (Object, error)
	Get(ctx context.Context, reference string) ([]byte, error)
}

// MemoryStorage keeps objects in memory for local development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "memory://resumes"
	}
	return &MemoryStorage{
		objects: make(map[string][]byte),
		baseURL: baseURL,
	}
}

func (s *MemoryStorage) Put(_ context.Context, fileName string, content []byte) (Object, error) {
	reference := uuid.NewString() + "/" + fileName

	s.mu.Lock()
	s.objects[reference] = append([]byte(nil), content...)
	s.mu.Unlock()

	return Object{
		Reference: reference,
		URL:       fmt.Sprintf("%s/%s", s.baseURL, reference),
	}, nil
}

func (s *MemoryStorage) Get(_ context.Context, reference string) ([]byte, error) {
	s.mu.RLock()
	content, ok := s.objects[reference]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}
