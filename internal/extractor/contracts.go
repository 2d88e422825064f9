package extractor

import (
	"context"
	"errors"

	"github.com/smartats/ats-backend/internal/domain"
)

// ErrUnavailable signals the extractor backend cannot be used at all
// (missing credentials), letting callers pick a fallback at wiring time.
var ErrUnavailable = errors.New("extractor unavailable")

// Extractor turns raw resume bytes into structured candidate fields.
// Any returned error is terminal for the task: the worker records FAILED
// and does not re-invoke the extractor for that task.
type Extractor interface {
	Extract(ctx context.Context, content []byte, fileName string) (domain.ResumeFields, error)
}
