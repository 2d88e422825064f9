package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventResumeUploaded           EventType = "resume.uploaded"
	EventResumeParseCompleted     EventType = "resume.parse_completed"
	EventResumeParseFailed        EventType = "resume.parse_failed"
	EventCandidateCreated         EventType = "candidate.created"
	EventCandidateUpdated         EventType = "candidate.updated"
	EventApplicationSubmitted     EventType = "application.submitted"
	EventApplicationStatusChanged EventType = "application.status_changed"
	EventInterviewScheduled       EventType = "interview.scheduled"
	EventInterviewCompleted       EventType = "interview.completed"
	EventInterviewCancelled       EventType = "interview.cancelled"
)

var knownEventTypes = map[EventType]string{
	EventResumeUploaded:           "resume uploaded",
	EventResumeParseCompleted:     "resume parse completed",
	EventResumeParseFailed:        "resume parse failed",
	EventCandidateCreated:         "candidate created",
	EventCandidateUpdated:         "candidate updated",
	EventApplicationSubmitted:     "application submitted",
	EventApplicationStatusChanged: "application status changed",
	EventInterviewScheduled:       "interview scheduled",
	EventInterviewCompleted:       "interview completed",
	EventInterviewCancelled:       "interview cancelled",
}

func ValidEventType(value string) bool {
	_, ok := knownEventTypes[EventType(value)]
	return ok
}

func (t EventType) Describe() string {
	if description, ok := knownEventTypes[t]; ok {
		return description
	}
	return string(t)
}

// Matches reports whether the event type matches a subscription pattern:
// exact type, "resume.*" style prefix, or "*" for everything.
func (t EventType) Matches(pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(string(t), strings.TrimSuffix(pattern, "*"))
	}
	return string(t) == pattern
}

// Event is an immutable business notice. Consumers persist what they need;
// the bus itself never stores events.
type Event struct {
	ID         string         `json:"event_id"`
	Type       EventType      `json:"event_type"`
	OccurredAt time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data"`
}

func NewEvent(eventType EventType, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
