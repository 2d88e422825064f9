package queue

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

func TestLocalQueueDeliversEnqueuedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := NewLocalQueue(8, 3, log.New(io.Discard, "", 0))

	var mu sync.Mutex
	received := make([]string, 0)
	done := make(chan struct{})

	go func() {
		_ = local.Consume(ctx, func(_ context.Context, message domain.ParseMessage) error {
			mu.Lock()
			received = append(received, message.TaskID)
			if len(received) == 2 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}()

	_ = local.Enqueue(ctx, domain.ParseMessage{TaskID: "t1"})
	_ = local.EnqueueBatch(ctx, []domain.ParseMessage{{TaskID: "t2"}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for deliveries")
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0] != "t1" || received[1] != "t2" {
		t.Fatalf("unexpected delivery order: %v", received)
	}
}

func TestLocalQueueMovesExhaustedMessagesToDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := NewLocalQueue(8, 2, log.New(io.Discard, "", 0))

	attempts := make(chan int, 8)
	go func() {
		_ = local.Consume(ctx, func(_ context.Context, message domain.ParseMessage) error {
			attempts <- message.Attempt
			return errors.New("handler failure")
		})
	}()

	_ = local.Enqueue(ctx, domain.ParseMessage{TaskID: "t1"})

	deadline := time.After(5 * time.Second)
	seen := 0
	for seen < 2 {
		select {
		case <-attempts:
			seen++
		case <-deadline:
			t.Fatalf("expected 2 attempts before DLQ, saw %d", seen)
		}
	}

	waitUntil := time.Now().Add(2 * time.Second)
	for local.DLQSize() == 0 {
		if time.Now().After(waitUntil) {
			t.Fatalf("expected message in DLQ")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
