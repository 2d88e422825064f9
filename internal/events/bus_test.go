package events

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

func newTestBus(t *testing.T, bufferSize int) *Bus {
	t.Helper()
	bus := NewBus(context.Background(), bufferSize, log.New(io.Discard, "", 0))
	t.Cleanup(bus.Close)
	return bus
}

func TestBusFansOutToIndependentSubscribers(t *testing.T) {
	bus := newTestBus(t, 16)

	first := make(chan domain.Event, 1)
	second := make(chan domain.Event, 1)
	release := make(chan struct{})

	// The first subscriber blocks until released; the second must still
	// receive the event promptly.
	bus.Subscribe("slow", "*", func(_ context.Context, event domain.Event) {
		<-release
		first <- event
	})
	bus.Subscribe("fast", "*", func(_ context.Context, event domain.Event) {
		second <- event
	})

	published := domain.NewEvent(domain.EventResumeParseCompleted, map[string]any{"resume_id": "r1"})
	bus.Publish(published)

	select {
	case received := <-second:
		if received.ID != published.ID {
			t.Fatalf("expected event %s, got %s", published.ID, received.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fast subscriber was blocked by slow subscriber")
	}

	close(release)
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow subscriber never received the event")
	}
}

func TestBusPreservesPublishOrderPerSubscriber(t *testing.T) {
	bus := newTestBus(t, 64)

	var mu sync.Mutex
	order := make([]string, 0, 3)
	done := make(chan struct{})

	bus.Subscribe("collector", "resume.*", func(_ context.Context, event domain.Event) {
		mu.Lock()
		order = append(order, event.Data["seq"].(string))
		if len(order) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	for _, seq := range []string{"a", "b", "c"} {
		bus.Publish(domain.NewEvent(domain.EventResumeUploaded, map[string]any{"seq": seq}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for deliveries")
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected publish order preserved, got %v", order)
	}
}

func TestBusPatternMatching(t *testing.T) {
	bus := newTestBus(t, 16)

	matched := make(chan domain.EventType, 4)
	bus.Subscribe("resume-only", "resume.*", func(_ context.Context, event domain.Event) {
		matched <- event.Type
	})

	bus.Publish(domain.NewEvent(domain.EventInterviewScheduled, nil))
	bus.Publish(domain.NewEvent(domain.EventResumeParseFailed, nil))

	select {
	case eventType := <-matched:
		if eventType != domain.EventResumeParseFailed {
			t.Fatalf("expected resume.parse_failed, got %s", eventType)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("matching event was not delivered")
	}

	select {
	case eventType := <-matched:
		t.Fatalf("unexpected delivery for %s", eventType)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusShedsOldestWhenSubscriberInboxIsFull(t *testing.T) {
	bus := newTestBus(t, 1)

	blocked := make(chan struct{})
	received := make(chan string, 8)
	bus.Subscribe("stuck", "*", func(_ context.Context, event domain.Event) {
		<-blocked
		received <- event.Data["seq"].(string)
	})

	// First event is picked up by the drain loop and blocks in the handler;
	// the next two contend for the single inbox slot.
	bus.Publish(domain.NewEvent(domain.EventResumeUploaded, map[string]any{"seq": "1"}))
	time.Sleep(50 * time.Millisecond)
	bus.Publish(domain.NewEvent(domain.EventResumeUploaded, map[string]any{"seq": "2"}))
	bus.Publish(domain.NewEvent(domain.EventResumeUploaded, map[string]any{"seq": "3"}))

	close(blocked)

	got := make([]string, 0, 2)
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case seq := <-received:
			got = append(got, seq)
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		}
	}

	if bus.Dropped("stuck") != 1 {
		t.Fatalf("expected 1 dropped event, got %d", bus.Dropped("stuck"))
	}
	if got[0] != "1" || got[1] != "3" {
		t.Fatalf("expected oldest pending event shed, got %v", got)
	}
}
