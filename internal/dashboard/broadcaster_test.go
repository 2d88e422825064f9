package dashboard

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

func TestBroadcasterFansOutToAllConnections(t *testing.T) {
	broadcaster := NewBroadcaster(8, log.New(io.Discard, "", 0))
	first := broadcaster.Attach()
	second := broadcaster.Attach()

	if broadcaster.ConnectionCount() != 2 {
		t.Fatalf("expected 2 connections, got %d", broadcaster.ConnectionCount())
	}

	event := domain.NewEvent(domain.EventResumeParseCompleted, map[string]any{"resume_id": "r1"})
	broadcaster.HandleEvent(context.Background(), event)

	for _, connection := range []*Connection{first, second} {
		select {
		case notice := <-connection.C:
			if notice.EventID != event.ID {
				t.Fatalf("wrong event id: %s", notice.EventID)
			}
			if notice.EventType != "resume.parse_completed" {
				t.Fatalf("wrong event type: %s", notice.EventType)
			}
			if notice.Message != "resume parse completed" {
				t.Fatalf("expected human message, got %q", notice.Message)
			}
		case <-time.After(time.Second):
			t.Fatalf("connection never received the notice")
		}
	}
}

func TestBroadcasterDetachStopsDelivery(t *testing.T) {
	broadcaster := NewBroadcaster(8, nil)
	kept := broadcaster.Attach()
	removed := broadcaster.Attach()

	broadcaster.Detach(removed)
	broadcaster.Detach(removed) // double-detach is a no-op

	broadcaster.HandleEvent(context.Background(), domain.NewEvent(domain.EventResumeUploaded, nil))

	select {
	case <-kept.C:
	case <-time.After(time.Second):
		t.Fatalf("remaining connection must still receive notices")
	}

	select {
	case notice := <-removed.C:
		t.Fatalf("detached connection received notice %s", notice.EventID)
	default:
	}

	if broadcaster.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection after detach, got %d", broadcaster.ConnectionCount())
	}
}

func TestBroadcasterShedsOldestForSlowClient(t *testing.T) {
	broadcaster := NewBroadcaster(1, nil)
	connection := broadcaster.Attach()

	for _, id := range []string{"a", "b", "c"} {
		broadcaster.HandleEvent(context.Background(), domain.Event{
			ID:         id,
			Type:       domain.EventResumeUploaded,
			OccurredAt: time.Now().UTC(),
			Data:       map[string]any{},
		})
	}

	select {
	case notice := <-connection.C:
		if notice.EventID != "c" {
			t.Fatalf("expected newest notice to survive, got %s", notice.EventID)
		}
	default:
		t.Fatalf("expected one buffered notice")
	}
}
