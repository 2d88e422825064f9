package queue

import (
	"context"

	"github.com/smartats/ats-backend/internal/domain"
)

// Producer sends resume-parse jobs to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.ParseMessage) error
	EnqueueBatch(ctx context.Context, messages []domain.ParseMessage) error
}

// Consumer receives resume-parse jobs and executes handlers. Delivery is
// at-least-once; a nil handler error acknowledges the message.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.ParseMessage) error) error
}
