package audit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartats/ats-backend/internal/domain"
)

// Operation describes a write operation for the audit trail. Call sites
// pass it explicitly; there is no reflection or annotation scanning.
type Operation struct {
	Module      string
	Action      string
	Description string
	ActorID     string
}

// Recorder is the audit-trail collaborator. Recording failures must never
// fail the wrapped operation, so Record returns nothing.
type Recorder interface {
	Record(ctx context.Context, op Operation)
}

// LogRecorder writes audit entries to the process log. Used when no audit
// backend is configured.
type LogRecorder struct {
	logger *log.Logger
}

func NewLogRecorder(logger *log.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, op Operation) {
	if r.logger != nil {
		r.logger.Printf(
			"audit module=%s action=%s actor=%s description=%q",
			op.Module, op.Action, op.ActorID, op.Description,
		)
	}
}

// MemoryRecorder keeps entries in memory for tests and local inspection.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{entries: make([]domain.AuditEntry, 0)}
}

func (r *MemoryRecorder) Record(_ context.Context, op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, domain.AuditEntry{
		ID:          uuid.NewString(),
		Module:      op.Module,
		Action:      op.Action,
		Description: op.Description,
		ActorID:     op.ActorID,
		CreatedAt:   time.Now().UTC(),
	})
}

func (r *MemoryRecorder) Entries() []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEntry(nil), r.entries...)
}
